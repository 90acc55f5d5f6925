package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerlive/internal/auth"
	"github.com/lox/pokerlive/internal/client"
	"github.com/lox/pokerlive/internal/config"
	"github.com/lox/pokerlive/internal/display"
)

// PlayCmd connects to the server, joins a room and runs the table TUI
type PlayCmd struct {
	Room   int    `arg:"" help:"Room id to join"`
	Config string `short:"c" help:"Config file path" default:"~/.pokerlive/config.hcl"`
	Server string `short:"s" help:"Server URL override"`
	Debug  bool   `short:"d" help:"Enable debug logging"`
}

// Run implements the play command
func (p *PlayCmd) Run() error {
	cfg, err := config.Load(expandHome(p.Config))
	if err != nil {
		return err
	}
	if p.Server != "" {
		cfg.Server.URL = p.Server
	}

	logger, closeLog, err := setupLogger(cfg, p.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	creds, err := credentials(cfg, logger)
	if err != nil {
		return err
	}
	if !creds.Authenticated() {
		return fmt.Errorf("no stored credentials; run 'pokerlive login' or set %s", config.EnvToken)
	}

	c := client.New(client.Config{
		ServerURL:         cfg.Server.URL,
		ReconnectAttempts: cfg.Server.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay(),
	}, creds, logger)

	model := display.New(c, logger)
	c.OnStatus(model.StatusFunc())
	c.OnNotice(model.NoticeFunc())

	program := tea.NewProgram(model, tea.WithAltScreen())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer c.Disconnect()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("tui error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.Connect(ctx); err != nil {
			program.Quit()
			return err
		}
		return c.JoinRoom(p.Room)
	})

	return g.Wait()
}

// credentials returns the env token when set, otherwise the profile store
func credentials(cfg *config.Config, logger *log.Logger) (auth.CredentialProvider, error) {
	if token := os.Getenv(config.EnvToken); token != "" {
		return auth.StaticToken(token), nil
	}
	return auth.NewProfileStore(cfg.Profile.Path, logger)
}

// setupLogger writes logs to the configured file, or discards them so they
// never corrupt the TUI output.
func setupLogger(cfg *config.Config, debug bool) (*log.Logger, func(), error) {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	} else if l, err := log.ParseLevel(cfg.UI.LogLevel); err == nil {
		level = l
	}

	var w io.Writer = io.Discard
	closeLog := func() {}
	if cfg.UI.LogFile != "" {
		f, err := os.OpenFile(expandHome(cfg.UI.LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeLog = func() { _ = f.Close() }
	}

	return log.NewWithOptions(w, log.Options{Level: level, ReportTimestamp: true}), closeLog, nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
