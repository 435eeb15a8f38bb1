// Command inspect dumps the contents of a journal database for
// debugging: scopes, record counts, or one full scope as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"chatsync/pkg/journal"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

func main() {
	var path, scope string
	flag.StringVar(&path, "path", "", "journal database path")
	flag.StringVar(&scope, "scope", "", "dump this scope's records as JSON")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	logger.Init()

	j, err := journal.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	if scope != "" {
		msgs, err := j.LoadScope(models.ScopeID(scope))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load scope: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(msgs)
		return
	}

	scopes, err := j.Scopes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list scopes: %v\n", err)
		os.Exit(1)
	}
	for _, sc := range scopes {
		msgs, err := j.LoadScope(sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", sc, err)
			continue
		}
		tombs := 0
		for _, m := range msgs {
			if m.Deleted {
				tombs++
			}
		}
		fmt.Printf("%-40s %5d records %4d tombstones\n", sc, len(msgs), tombs)
	}
}
