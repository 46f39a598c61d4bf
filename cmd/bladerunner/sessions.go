package main

import (
	"fmt"
	"path/filepath"

	"github.com/openclaw/bladerunner/internal/session"
)

// Run lists recorded sessions, newest first.
func (c *SessionsCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	mgr := session.NewManager(filepath.Join(cfg.StoragePath(), "sessions"))

	infos, err := mgr.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println(mutedStyle.Render("no sessions recorded"))
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  %s  %s\n",
			headingStyle.Render(info.ID),
			mutedStyle.Render(info.Updated),
			mutedStyle.Render(fmt.Sprintf("%d events", info.EventCount)))
	}
	return nil
}
