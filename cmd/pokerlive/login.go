package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/pokerlive/internal/auth"
	"github.com/lox/pokerlive/internal/config"
)

// LoginCmd stores a bearer token and profile for future sessions. The token
// itself comes from the account service's login endpoint; this command only
// persists it locally.
type LoginCmd struct {
	Token    string `arg:"" help:"Bearer token issued by the account service"`
	UserID   string `help:"Player id associated with the token"`
	Username string `help:"Display name"`
	Config   string `short:"c" help:"Config file path" default:"~/.pokerlive/config.hcl"`
}

// Run implements the login command
func (l *LoginCmd) Run() error {
	cfg, err := config.Load(expandHome(l.Config))
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	store, err := auth.NewProfileStore(cfg.Profile.Path, logger)
	if err != nil {
		return err
	}

	if err := store.Login(l.Token, &auth.Profile{
		ID:       l.UserID,
		Username: l.Username,
	}); err != nil {
		return err
	}

	fmt.Printf("credentials stored in %s\n", cfg.Profile.Path)
	return nil
}

// LogoutCmd clears stored credentials
type LogoutCmd struct {
	Config string `short:"c" help:"Config file path" default:"~/.pokerlive/config.hcl"`
}

// Run implements the logout command
func (l *LogoutCmd) Run() error {
	cfg, err := config.Load(expandHome(l.Config))
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	store, err := auth.NewProfileStore(cfg.Profile.Path, logger)
	if err != nil {
		return err
	}

	if err := store.Logout(); err != nil {
		return err
	}

	fmt.Println("logged out")
	return nil
}
