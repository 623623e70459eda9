// Package commands implements the dwc CLI's subcommands. Each file builds
// one cobra.Command bound to a shared App, which carries the flags and
// wiring every command needs: which workspace to open, which identity to
// commit as, and how chatty to be.
package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/store"
)

// App is the shared context every dwc subcommand runs against.
type App struct {
	Workspace string
	Identity  registry.Identity
	Batch     bool
	Verbose   bool
	Logger    *slog.Logger
}

// Store opens the workspace store App.Workspace points at. It does not
// verify the workspace has been initialised; callers that need that check
// should use store.Store.CheckInvariants or ManifestExists as appropriate.
func (a *App) Store() *store.Store {
	return store.Open(a.Workspace)
}

// confirm asks prompt on stderr and reads a yes/no answer, unless Batch is
// set, in which case it proceeds without asking (dwc's definition of
// --batch: never prompt).
func (a *App) confirm(prompt string) bool {
	if a.Batch {
		return true
	}

	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

// announce prints one plan line to stderr when Verbose is set, letting a
// caller see what a command is about to do before it does it.
func (a *App) announce(format string, args ...any) {
	if !a.Verbose {
		return
	}

	fmt.Fprintf(os.Stderr, "plan: "+format+"\n", args...)
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}

	return slog.Default()
}

// hostnameOrEmpty returns the local hostname, or "" if it cannot be
// determined; ref resolution treats "" as simply matching no host-scoped tag.
func hostnameOrEmpty() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}

	return h
}
