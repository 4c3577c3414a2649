// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Command describes a process to run with optional stdin and extra environment.
type Command struct {
	// Name is the executable to run.
	Name string
	// Args are passed to the executable.
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env entries ("KEY=value") are appended to the inherited environment.
	Env []string
	// Stdin is written to the process's standard input when non-nil.
	Stdin []byte
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through "bash -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)

	// RunCommand executes a fully described command and returns combined output.
	RunCommand(ctx context.Context, cmd Command) (output []byte, err error)
}
