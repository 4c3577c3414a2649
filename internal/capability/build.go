package capability

import (
	"fmt"

	"github.com/ShayCichocki/jit/internal/exec"
	"github.com/ShayCichocki/jit/internal/protect"
)

// Options controls which providers Load assembles.
type Options struct {
	// Builtin enables the filesystem and shell providers.
	Builtin bool
	// ManifestPath points at a YAML manifest of command providers; optional.
	ManifestPath string
	// WorkDir is the root for builtin tools and the working directory of commands.
	WorkDir string
	// Protected adds guard rules for the filesystem provider's Write and Edit
	// tools on top of protect's defaults.
	Protected []string
	// Runner executes external commands. Defaults to exec.NewRunner().
	Runner exec.CommandRunner
}

// Load builds a registry: builtin providers first, then manifest providers
// in file order. A manifest provider reusing a builtin name is an error.
func Load(opts Options) (*Registry, error) {
	runner := opts.Runner
	if runner == nil {
		runner = exec.NewRunner()
	}

	var providers []Provider
	if opts.Builtin {
		fs := NewFilesystemProvider(opts.WorkDir, runner)
		fs.SetGuard(protect.New(opts.Protected...))
		providers = append(providers, fs, NewShellProvider(opts.WorkDir, runner))
	}

	if opts.ManifestPath != "" {
		m, err := LoadManifest(opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		providers = append(providers, m.Build(opts.WorkDir, runner)...)
	}

	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Name())
		}
		seen[p.Name()] = true
	}
	return NewRegistry(providers...), nil
}
