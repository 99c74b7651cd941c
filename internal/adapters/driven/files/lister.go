// Package files enumerates the indexable files of a document directory.
//
// Enumeration prefers `git ls-files` when the directory is a git root,
// since git already knows which files matter. Outside git the adapter
// walks the tree itself, skipping dotfiles and honouring .gitignore
// patterns. Files with the .alias extension are indirection lists:
// each non-empty line names an outside path to include, and a line
// naming a directory pulls that directory in recursively.
package files

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// AliasExt marks indirection files inside a document directory.
const AliasExt = ".alias"

var (
	_ driven.FileLister  = (*Lister)(nil)
	_ driven.GitResolver = (*Lister)(nil)
)

// Lister enumerates matching files under document directories.
type Lister struct{}

// NewLister creates a file lister.
func NewLister() *Lister {
	return &Lister{}
}

// List returns absolute paths of all files under dir matching one of
// the given extensions, following .alias indirection.
func (l *Lister) List(ctx context.Context, dir string, extensions []string) ([]string, error) {
	return l.list(ctx, dir, toSet(extensions), 0)
}

// Root implements the git resolver port via GitRoot.
func (l *Lister) Root(path string) (string, bool) {
	return GitRoot(path)
}

// Pull implements the git resolver port via the package Pull.
func (l *Lister) Pull(ctx context.Context, dir string) (string, error) {
	return Pull(ctx, dir)
}

// aliasDepthLimit stops runaway indirection when alias files point at
// each other's directories.
const aliasDepthLimit = 8

func (l *Lister) list(ctx context.Context, dir string, extSet map[string]bool, depth int) ([]string, error) {
	if depth > aliasDepthLimit {
		return nil, fmt.Errorf("alias nesting exceeds %d levels at %s", aliasDepthLimit, dir)
	}

	if tracked, err := gitFiles(ctx, dir); err == nil {
		var out []string
		var aliases []string
		for _, rel := range tracked {
			full := filepath.Join(dir, rel)
			switch {
			case filepath.Ext(rel) == AliasExt:
				aliases = append(aliases, full)
			case extSet[filepath.Ext(rel)]:
				out = append(out, full)
			}
		}
		resolved, err := l.resolveAliases(ctx, aliases, extSet, depth)
		if err != nil {
			return nil, err
		}
		return append(out, resolved...), nil
	}

	return l.walk(ctx, dir, extSet, depth)
}

// walk enumerates dir without git, honouring .gitignore files.
func (l *Lister) walk(ctx context.Context, dir string, extSet map[string]bool, depth int) ([]string, error) {
	ignores := map[string]*ignoreRules{}

	var out []string
	var aliases []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			if name == ".gitignore" {
				rules, rerr := loadIgnoreRules(path)
				if rerr == nil {
					ignores[filepath.Dir(path)] = rules
				}
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if ignored(ignores, path) {
			return nil
		}

		switch {
		case filepath.Ext(name) == AliasExt:
			aliases = append(aliases, path)
		case extSet[filepath.Ext(name)]:
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	resolved, err := l.resolveAliases(ctx, aliases, extSet, depth)
	if err != nil {
		return nil, err
	}
	return append(out, resolved...), nil
}

// resolveAliases expands alias files into the paths they name.
func (l *Lister) resolveAliases(ctx context.Context, aliasFiles []string, extSet map[string]bool, depth int) ([]string, error) {
	var out []string
	for _, aliasFile := range aliasFiles {
		entries, err := readAliasEntries(aliasFile)
		if err != nil {
			logger.Warn("reading alias file %s: %v", aliasFile, err)
			continue
		}

		for _, entry := range entries {
			info, err := os.Stat(entry)
			if err != nil {
				logger.Debug("alias entry %s unavailable: %v", entry, err)
				continue
			}
			if info.IsDir() {
				nested, err := l.list(ctx, entry, extSet, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// readAliasEntries returns the non-empty trimmed lines of an alias file.
func readAliasEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries, scanner.Err()
}

// gitFiles lists tracked files via git. It fails when dir is not a git
// root or git is unavailable, and the caller falls back to walking.
func gitFiles(ctx context.Context, dir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil, fmt.Errorf("not a git root: %s", dir)
	}

	cmd := exec.CommandContext(ctx, "git", "ls-files")
	cmd.Dir = dir
	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files in %s: %w", dir, err)
	}

	var files []string
	for _, line := range strings.Split(string(stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no tracked files in %s", dir)
	}
	return files, nil
}

// GitRoot walks upward from path to the enclosing git repository root.
func GitRoot(path string) (string, bool) {
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Pull runs `git pull` in dir and returns the combined output.
func Pull(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "pull")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git pull in %s: %w", dir, err)
	}
	return string(out), nil
}

// ignoreRules holds the patterns of one .gitignore file.
type ignoreRules struct {
	patterns []string
}

// loadIgnoreRules parses a .gitignore file, keeping non-comment lines.
func loadIgnoreRules(path string) (*ignoreRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules := &ignoreRules{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules.patterns = append(rules.patterns, strings.TrimSuffix(line, "/"))
	}
	return rules, scanner.Err()
}

// matches reports whether rel (relative to the .gitignore's directory)
// is covered by one of the rules. Patterns without a slash apply to any
// path segment, matching how loose .gitignore lines behave.
func (r *ignoreRules) matches(rel string) bool {
	segments := strings.Split(rel, "/")
	for _, pattern := range r.patterns {
		pattern = strings.TrimPrefix(pattern, "/")
		if strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
			if strings.HasPrefix(rel, pattern+"/") {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// ignored checks path against every .gitignore seen above it.
func ignored(ignores map[string]*ignoreRules, path string) bool {
	for igDir, rules := range ignores {
		rel, err := filepath.Rel(igDir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if rules.matches(filepath.ToSlash(rel)) {
			return true
		}
	}
	return false
}

func toSet(extensions []string) map[string]bool {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
