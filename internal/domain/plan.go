package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RunCommandStep executes a command with arguments in the target directory.
type RunCommandStep struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// CommandLine renders the command the way it is recorded and reported.
func (r *RunCommandStep) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// ManualStep asks the operator to perform work by hand and confirm it.
type ManualStep struct {
	Title        string `toml:"title"`
	Instructions string `toml:"instructions"`
}

// Step is a closed union: exactly one of Run or Manual is set. The TOML
// form carries a single [steps.run-command] or [steps.manual-step] table.
type Step struct {
	Run    *RunCommandStep `toml:"run-command,omitempty"`
	Manual *ManualStep     `toml:"manual-step,omitempty"`
}

// ErrInvalidStep is returned for steps carrying neither or both variants.
var ErrInvalidStep = errors.New("step must contain exactly one of run-command or manual-step")

// Validate checks the one-variant invariant.
func (s Step) Validate() error {
	if (s.Run == nil) == (s.Manual == nil) {
		return ErrInvalidStep
	}
	return nil
}

// Describe renders a step for listings.
func (s Step) Describe() string {
	switch {
	case s.Run != nil:
		return "RunCommand - " + s.Run.CommandLine()
	case s.Manual != nil:
		return fmt.Sprintf("ManualStep - Title: %q, Instructions: %q", s.Manual.Title, s.Manual.Instructions)
	}
	return "invalid step"
}

// Plan is an ordered list of steps. Every target of a task executes the
// steps in this order; step indices are 1-based everywhere they are
// persisted or displayed.
type Plan struct {
	Steps []Step `toml:"steps"`
}
