package banner

import (
	"fmt"

	"chatsync/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║     ███████║███████║   ██║   ███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║     ██╔══██║██╔══██║   ██║   ╚════██║  ╚██╔╝  ██║╚██╗██║██║
╚██████╗██║  ██║██║  ██║   ██║   ███████║   ██║   ██║ ╚████║╚██████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print writes the startup banner using the effective config.
func Print(eff config.Effective, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", eff.Addr)
	if eff.JournalPath != "" {
		fmt.Printf("Journal:   %s\n", eff.JournalPath)
	} else {
		fmt.Println("Journal:   disabled")
	}
	if eff.Config.Channel.URL != "" {
		fmt.Printf("Channel:   %s\n", eff.Config.Channel.URL)
	} else {
		fmt.Println("Channel:   offline (emissions dropped)")
	}
	if eff.Config.Identity.Username != "" {
		fmt.Printf("Identity:  %s\n", eff.Config.Identity.Username)
	}
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	fmt.Printf("Source:    %s\n", eff.Source)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/scopes/{scope}/messages        - send a message")
	fmt.Println("GET  /v1/scopes/{scope}/messages        - list a scope's sequence")
	fmt.Println("POST /v1/scopes/{scope}/messages/edit   - edit (optimistic)")
	fmt.Println("POST /v1/scopes/{scope}/messages/delete - delete (tombstone)")
	fmt.Println("POST /v1/scopes/{scope}/messages/react  - toggle a reaction")
	fmt.Println("GET  /v1/threads                        - visible thread listing")
	fmt.Println("GET  /metrics /healthz /readyz          - operations")
}
