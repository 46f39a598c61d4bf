package main

import (
	"fmt"
	"path/filepath"

	"github.com/openclaw/bladerunner/internal/replay"
	"github.com/openclaw/bladerunner/internal/session"
)

// Run replays a session transcript: styled timeline in a pager, plain
// stdout with --no-pager, or continuously updating with --live.
func (c *ReplayCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	mgr := session.NewManager(filepath.Join(cfg.StoragePath(), "sessions"))

	id := c.Session
	if id == "" {
		id, err = mgr.Latest()
		if err != nil {
			return fmt.Errorf("no session to replay: %w", err)
		}
	}

	render := func() (string, error) {
		return replay.RenderSession(mgr, id, c.Verbose)
	}

	if c.Live {
		return replay.NewPager("session "+id).RunLive(mgr.Path(id), render)
	}

	content, err := render()
	if err != nil {
		return err
	}
	if c.NoPager {
		fmt.Print(content)
		return nil
	}
	return replay.NewPager("session " + id).Run(content)
}
