package capability

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/jit/internal/exec"
)

// Manifest declares command-backed providers, in file order.
//
//	providers:
//	  weather:
//	    description: Weather lookups
//	    env:
//	      API_KEY: ${WEATHER_API_KEY}
//	    tools:
//	      - name: get_weather
//	        description: Current weather for a city
//	        command: weather-cli
//	        args: [--json]
//	        properties:
//	          city: {type: string, description: City name}
//	        required: [city]
//	        timeout: 30s
type Manifest struct {
	Providers []ProviderConfig
}

// ProviderConfig is one provider entry of a manifest.
type ProviderConfig struct {
	Name        string            `yaml:"-"`
	Description string            `yaml:"description"`
	Enabled     *bool             `yaml:"enabled"`
	Env         map[string]string `yaml:"env"`
	Tools       []CommandTool     `yaml:"tools"`
}

// IsEnabled reports whether the provider should be loaded. Defaults to true.
func (c ProviderConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CommandTool maps a tool name to an external command.
type CommandTool struct {
	ToolSpec `yaml:",inline"`
	Command  string        `yaml:"command"`
	Args     []string      `yaml:"args"`
	Timeout  time.Duration `yaml:"timeout"`
}

// manifestFile keeps providers as a node so their declaration order survives.
type manifestFile struct {
	Providers yaml.Node `yaml:"providers"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} with the variable's value; unset variables become "".
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// LoadManifest reads a manifest file. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest YAML and expands ${VAR} references in
// env values, commands, and args.
func ParseManifest(data []byte) (*Manifest, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}

	m := &Manifest{}
	node := file.Providers
	if node.Kind == 0 {
		return m, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse tool manifest: providers must be a mapping (line %d)", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var pc ProviderConfig
		if err := node.Content[i+1].Decode(&pc); err != nil {
			return nil, fmt.Errorf("parse provider %q: %w", node.Content[i].Value, err)
		}
		pc.Name = node.Content[i].Value

		for k, v := range pc.Env {
			pc.Env[k] = expandEnv(v)
		}
		for j := range pc.Tools {
			t := &pc.Tools[j]
			if t.Name == "" || t.Command == "" {
				return nil, fmt.Errorf("provider %q: tool %d needs a name and a command", pc.Name, j)
			}
			t.Command = expandEnv(t.Command)
			for k := range t.Args {
				t.Args[k] = expandEnv(t.Args[k])
			}
		}
		m.Providers = append(m.Providers, pc)
	}
	return m, nil
}

// Build creates a CommandProvider for every enabled entry.
func (m *Manifest) Build(workDir string, runner exec.CommandRunner) []Provider {
	var providers []Provider
	for _, pc := range m.Providers {
		if !pc.IsEnabled() {
			continue
		}
		providers = append(providers, NewCommandProvider(pc, workDir, runner))
	}
	return providers
}

// envList flattens an env map into sorted KEY=value entries.
func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
