// Package app wires configuration, the journal, the engine and the
// channel into a running process.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"chatsync/internal/retention"
	"chatsync/pkg/banner"
	"chatsync/pkg/channel"
	"chatsync/pkg/config"
	"chatsync/pkg/engine"
	"chatsync/pkg/journal"
	"chatsync/pkg/logger"
	"chatsync/pkg/notify"
)

// App encapsulates the process components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	journal *journal.Store
	notices *notify.Store
	engine  *engine.Engine
	ws      *channel.WSClient

	srv *http.Server
}

// New initializes everything that needs no running context: logging,
// the journal, stores. The channel dials and the HTTP server starts in
// Run.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	logger.InitWithOptions(eff.Config.Logging.Level, eff.Config.Logging.Format)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		notices:   notify.New(notify.DefaultTTL),
	}

	if eff.JournalPath != "" {
		j, err := journal.Open(eff.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal at %s: %w", eff.JournalPath, err)
		}
		a.journal = j
	}
	return a, nil
}

// Run dials the channel, builds the engine, restores journaled scopes,
// starts retention and the HTTP server, then blocks until ctx cancels
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	var adapter channel.Adapter = channel.Nop{}
	if url := a.eff.Config.Channel.URL; url != "" {
		ws, err := channel.DialWS(ctx, channel.WSConfig{
			URL:                url,
			Token:              a.eff.Config.Channel.Token,
			ReconnectBaseDelay: a.eff.Config.Channel.ReconnectBaseDelay.Duration(),
			ReconnectMaxDelay:  a.eff.Config.Channel.ReconnectMaxDelay.Duration(),
			MaxReconnects:      a.eff.Config.Channel.MaxReconnects,
		})
		if err != nil {
			return fmt.Errorf("dial channel %s: %w", url, err)
		}
		a.ws = ws
		adapter = ws
	}

	id := a.eff.Config.Identity
	opts := engine.Options{
		Self: engine.Identity{
			UserID:      id.UserID,
			Username:    id.Username,
			Avatar:      id.Avatar,
			BubbleColor: id.BubbleColor,
		},
		Channel:     adapter,
		Notices:     a.notices,
		TypingTTL:   a.eff.Config.Typing.TTL.Duration(),
		TypingRate:  a.eff.Config.Typing.Rate,
		TypingBurst: a.eff.Config.Typing.Burst,
	}
	if a.journal != nil {
		opts.Journal = a.journal
	}
	a.engine = engine.New(opts)
	a.engine.Subscribe()

	a.restoreJournal()

	retCancel, err := retention.Start(ctx, a.journal, retention.Options{
		Enabled: a.eff.Config.Retention.Enabled && a.journal != nil,
		Cron:    a.eff.Config.Retention.Cron,
		Period:  a.eff.Config.Retention.Period.Duration(),
	})
	if err != nil {
		return err
	}
	defer retCancel()

	banner.Print(a.eff, a.versionString())

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// restoreJournal seeds the engine with persisted sequences so a cold
// start renders without waiting for history events.
func (a *App) restoreJournal() {
	if a.journal == nil {
		return
	}
	scopes, err := a.journal.Scopes()
	if err != nil {
		logger.Warn("journal_restore_failed", "error", err)
		return
	}
	for _, sc := range scopes {
		msgs, err := a.journal.LoadScope(sc)
		if err != nil {
			logger.Warn("journal_restore_scope_failed", "scope", sc, "error", err)
			continue
		}
		a.engine.Restore(sc, msgs)
	}
	logger.Info("journal_restored", "scopes", len(scopes))
}

func (a *App) versionString() string {
	v := a.version
	if a.commit != "" && a.commit != "none" {
		v += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		v += " @ " + a.buildDate
	}
	return v
}

func (a *App) shutdown() {
	if a.srv != nil {
		_ = a.srv.Close()
	}
	if a.ws != nil {
		if err := a.ws.Close(); err != nil {
			logger.Warn("channel_close_failed", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("journal_close_failed", "error", err)
		}
	}
	logger.Info("shutdown_complete")
}
