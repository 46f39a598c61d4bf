package main

import "fmt"

// Run prints version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("bladerunner version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
