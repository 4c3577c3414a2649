package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShayCichocki/jit/internal/exec"
	"github.com/ShayCichocki/jit/internal/protect"
)

// FilesystemProvider reads, writes, and searches files under a root directory.
type FilesystemProvider struct {
	root   string
	runner exec.CommandRunner
	guard  *protect.Guard
}

// NewFilesystemProvider creates a provider rooted at root. The runner is used
// for content search (ripgrep).
func NewFilesystemProvider(root string, runner exec.CommandRunner) *FilesystemProvider {
	return &FilesystemProvider{root: root, runner: runner}
}

// SetGuard makes Write and Edit refuse paths the guard protects.
func (p *FilesystemProvider) SetGuard(g *protect.Guard) {
	p.guard = g
}

// Name implements Provider.
func (p *FilesystemProvider) Name() string { return "filesystem" }

// ToolNames implements Provider.
func (p *FilesystemProvider) ToolNames() []string { return namesOf(p.Tools()) }

// Tools implements Provider.
func (p *FilesystemProvider) Tools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "Read",
			Description: "Read a file. Returns contents with line numbers.",
			Properties: map[string]interface{}{
				"file_path": prop("string", "Path to the file to read"),
				"offset":    prop("integer", "Line number to start reading from (1-indexed, optional)"),
				"limit":     prop("integer", "Maximum number of lines to read (optional)"),
			},
			Required: []string{"file_path"},
		},
		{
			Name:        "Write",
			Description: "Write content to a file. Creates parent directories if needed.",
			Properties: map[string]interface{}{
				"file_path": prop("string", "Path to the file to write"),
				"content":   prop("string", "Content to write"),
			},
			Required: []string{"file_path", "content"},
		},
		{
			Name:        "Edit",
			Description: "Replace text in a file. old_string must be unique unless replace_all is true.",
			Properties: map[string]interface{}{
				"file_path":   prop("string", "Path to the file to edit"),
				"old_string":  prop("string", "Exact text to replace"),
				"new_string":  prop("string", "Replacement text"),
				"replace_all": prop("boolean", "Replace every occurrence (default false)"),
			},
			Required: []string{"file_path", "old_string", "new_string"},
		},
		{
			Name:        "Glob",
			Description: "Find files whose name matches a glob pattern.",
			Properties: map[string]interface{}{
				"pattern": prop("string", "Glob pattern, e.g. '*.md'"),
				"path":    prop("string", "Directory to search (optional)"),
			},
			Required: []string{"pattern"},
		},
		{
			Name:        "Grep",
			Description: "Search file contents with a regular expression.",
			Properties: map[string]interface{}{
				"pattern": prop("string", "Regex pattern"),
				"path":    prop("string", "File or directory to search (optional)"),
				"glob":    prop("string", "Only search files matching this glob"),
			},
			Required: []string{"pattern"},
		},
		{
			Name:        "ListDir",
			Description: "List the contents of a directory.",
			Properties: map[string]interface{}{
				"path": prop("string", "Directory path"),
			},
			Required: []string{"path"},
		},
	}
}

// Invoke implements Provider.
func (p *FilesystemProvider) Invoke(ctx context.Context, tool string, args json.RawMessage) (Result, error) {
	switch tool {
	case "Read":
		return p.read(args), nil
	case "Write":
		return p.write(args), nil
	case "Edit":
		return p.edit(args), nil
	case "Glob":
		return p.glob(args), nil
	case "Grep":
		return p.grep(ctx, args), nil
	case "ListDir":
		return p.listDir(args), nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
}

func (p *FilesystemProvider) read(args json.RawMessage) Result {
	var in struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}

	content, err := os.ReadFile(p.resolve(in.FilePath))
	if err != nil {
		return errorResult("Failed to read file: %v", err)
	}
	lines := strings.Split(string(content), "\n")

	start := 0
	if in.Offset > 0 {
		start = in.Offset - 1
		if start >= len(lines) {
			return errorResult("Offset beyond end of file")
		}
	}
	end := len(lines)
	if in.Limit > 0 {
		end = min(start+in.Limit, len(lines))
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, lines[i])
	}
	return Result{Content: truncate(sb.String())}
}

func (p *FilesystemProvider) write(args json.RawMessage) Result {
	var in struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}

	path := p.resolve(in.FilePath)
	if res, blocked := p.checkWritable(in.FilePath, path); blocked {
		return res
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errorResult("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0644); err != nil {
		return errorResult("Failed to write file: %v", err)
	}
	return Result{Content: fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.FilePath)}
}

func (p *FilesystemProvider) edit(args json.RawMessage) Result {
	var in struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}
	if in.OldString == "" {
		return errorResult("old_string must not be empty")
	}

	path := p.resolve(in.FilePath)
	if res, blocked := p.checkWritable(in.FilePath, path); blocked {
		return res
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return errorResult("Failed to read file: %v", err)
	}
	text := string(content)

	count := strings.Count(text, in.OldString)
	switch {
	case count == 0:
		return errorResult("old_string not found in file")
	case count > 1 && !in.ReplaceAll:
		return errorResult("old_string found %d times; must be unique or use replace_all=true", count)
	}

	n := 1
	if in.ReplaceAll {
		n = -1
	}
	if err := os.WriteFile(path, []byte(strings.Replace(text, in.OldString, in.NewString, n)), 0644); err != nil {
		return errorResult("Failed to write file: %v", err)
	}
	if in.ReplaceAll {
		return Result{Content: fmt.Sprintf("Replaced %d occurrences", count)}
	}
	return Result{Content: "Edit successful"}
}

func (p *FilesystemProvider) glob(args json.RawMessage) Result {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}

	base := p.resolve(in.Path)
	pattern := filepath.Base(in.Pattern)
	var matches []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			rel, _ := filepath.Rel(base, path)
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return errorResult("Glob error: %v", err)
	}
	if len(matches) == 0 {
		return Result{Content: "No files matched the pattern"}
	}
	return Result{Content: truncate(strings.Join(matches, "\n"))}
}

func (p *FilesystemProvider) grep(ctx context.Context, args json.RawMessage) Result {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}

	rgArgs := []string{"--color=never", "-n"}
	if in.Glob != "" {
		rgArgs = append(rgArgs, "--glob", in.Glob)
	}
	rgArgs = append(rgArgs, "-e", in.Pattern, p.resolve(in.Path))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// rg exits non-zero when nothing matches.
	out, _ := p.runner.Run(ctx, p.root, "rg", rgArgs...)
	if len(out) == 0 {
		return Result{Content: "No matches found"}
	}
	return Result{Content: truncate(string(out))}
}

func (p *FilesystemProvider) listDir(args json.RawMessage) Result {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err)
	}

	entries, err := os.ReadDir(p.resolve(in.Path))
	if err != nil {
		return errorResult("Failed to read directory: %v", err)
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "d %s/\n", entry.Name())
			continue
		}
		if info, err := entry.Info(); err == nil {
			fmt.Fprintf(&sb, "- %s (%d bytes)\n", entry.Name(), info.Size())
		} else {
			fmt.Fprintf(&sb, "? %s\n", entry.Name())
		}
	}
	return Result{Content: sb.String()}
}

// resolve joins relative paths onto the provider root.
func (p *FilesystemProvider) resolve(path string) string {
	if path == "" {
		return p.root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

// checkWritable applies the guard to a resolved path, matching it relative to
// the root when it lies inside.
func (p *FilesystemProvider) checkWritable(requested, resolved string) (Result, bool) {
	if p.guard == nil {
		return Result{}, false
	}
	target := resolved
	if rel, err := filepath.Rel(p.resolve(""), resolved); err == nil && !strings.HasPrefix(rel, "..") {
		target = rel
	}
	if protected, reason := p.guard.Check(target); protected {
		return errorResult("Refusing to modify protected path %s (%s)", requested, reason), true
	}
	return Result{}, false
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

var _ Provider = (*FilesystemProvider)(nil)
