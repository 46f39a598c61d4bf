// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run         RunCmd         `cmd:"" help:"Execute a task"`
	Interactive InteractiveCmd `cmd:"" help:"Run tasks in an interactive loop sharing one session"`
	Stats       StatsCmd       `cmd:"" help:"Show tool effectiveness and evaluation metrics"`
	Memory      MemoryCmd      `cmd:"" help:"Inspect or manage the solution memory"`
	Sessions    SessionsCmd    `cmd:"" help:"List recorded sessions"`
	Replay      ReplayCmd      `cmd:"" help:"Replay a session transcript"`
	Models      ModelsCmd      `cmd:"" help:"List known models and providers"`
	Version     VersionCmd     `cmd:"" help:"Show version information"`
}

// InteractiveCmd runs tasks read from the terminal in a loop. Each task
// sees the conversation of the previous ones.
type InteractiveCmd struct {
	Config    string `help:"Config file path"`
	Model     string `short:"m" help:"Model ID (overrides config)"`
	Provider  string `help:"Provider name (overrides config)"`
	Session   string `help:"Session to record under; resumed when it already exists"`
	Workspace string `short:"w" help:"Workspace directory for tools"`
	Profiles  string `help:"Agent profiles YAML path"`
	NoPlan    bool   `help:"Disable planning (single implicit step)"`
	Verbose   bool   `short:"v" help:"Debug logging"`
}

// RunCmd executes a single task.
type RunCmd struct {
	Task      string `arg:"" help:"Task to execute"`
	Config    string `help:"Config file path"`
	Model     string `short:"m" help:"Model ID (overrides config)"`
	Provider  string `help:"Provider name (overrides config)"`
	Session   string `help:"Session to record under; resumed when it already exists"`
	Workspace string `short:"w" help:"Workspace directory for tools"`
	Profiles  string `help:"Agent profiles YAML path"`
	NoPlan    bool   `help:"Disable planning (single implicit step)"`
	Verbose   bool   `short:"v" help:"Debug logging"`
}

// StatsCmd shows effectiveness and evaluation reports.
type StatsCmd struct {
	Config string `help:"Config file path"`
	Tools  bool   `help:"Show only tool effectiveness"`
	Recent int    `default:"5" help:"Recent executions to list"`
}

// MemoryCmd inspects the solution store.
type MemoryCmd struct {
	Config string `help:"Config file path"`
	Find   string `help:"Show solutions similar to this task"`
	Clear  bool   `help:"Delete all stored solutions"`
}

// SessionsCmd lists recorded sessions.
type SessionsCmd struct {
	Config string `help:"Config file path"`
}

// ReplayCmd replays a session transcript.
type ReplayCmd struct {
	Session string `arg:"" optional:"" help:"Session ID (default: latest)"`
	Config  string `help:"Config file path"`
	Verbose bool   `short:"v" help:"Include message and tool output bodies"`
	NoPager bool   `help:"Print to stdout instead of the pager"`
	Live    bool   `help:"Follow the transcript as it grows"`
}

// ModelsCmd lists known models.
type ModelsCmd struct {
	Provider string `help:"Filter by provider"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
