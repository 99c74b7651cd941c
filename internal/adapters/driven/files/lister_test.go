package files

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sorted(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

func TestListMatchesExtensions(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.go", "package a")
	writeTestFile(t, dir, "b.exe", "binary")
	c := writeTestFile(t, dir, "sub/c.md", "# doc")

	got, err := NewLister().List(context.Background(), dir, []string{".go", ".md"})
	require.NoError(t, err)
	assert.Equal(t, sorted([]string{a, c}), sorted(got))
}

func TestListNormalisesBareExtensions(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.go", "package a")

	got, err := NewLister().List(context.Background(), dir, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, got)
}

func TestListSkipsDotfilesAndDotDirs(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.go", "package a")
	writeTestFile(t, dir, ".hidden.go", "package hidden")
	writeTestFile(t, dir, ".cache/d.go", "package d")

	got, err := NewLister().List(context.Background(), dir, []string{".go"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, got)
}

func TestListHonoursGitignore(t *testing.T) {
	dir := t.TempDir()
	keep := writeTestFile(t, dir, "keep.go", "package keep")
	writeTestFile(t, dir, "generated.go", "package generated")
	writeTestFile(t, dir, "vendor/dep.go", "package dep")
	writeTestFile(t, dir, ".gitignore", "generated.go\nvendor/\n")

	got, err := NewLister().List(context.Background(), dir, []string{".go"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, got)
}

func TestNestedGitignoreScopesToItsDirectory(t *testing.T) {
	dir := t.TempDir()
	rootTmp := writeTestFile(t, dir, "scratch.tmp.go", "package scratch")
	writeTestFile(t, dir, "sub/scratch.tmp.go", "package scratch")
	sub := writeTestFile(t, dir, "sub/main.go", "package main")
	writeTestFile(t, dir, "sub/.gitignore", "*.tmp.go\n")

	got, err := NewLister().List(context.Background(), dir, []string{".go"})
	require.NoError(t, err)
	assert.Equal(t, sorted([]string{rootTmp, sub}), sorted(got))
}

func TestAliasFileIncludesOutsidePaths(t *testing.T) {
	docDir := t.TempDir()
	outside := t.TempDir()
	target := writeTestFile(t, outside, "notes.md", "# notes")
	writeTestFile(t, docDir, "1.alias", target+"\n\n"+filepath.Join(outside, "missing.md")+"\n")

	got, err := NewLister().List(context.Background(), docDir, []string{".md"})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, got)
}

func TestAliasDirectoryIsEnumeratedRecursively(t *testing.T) {
	docDir := t.TempDir()
	outside := t.TempDir()
	a := writeTestFile(t, outside, "a.md", "a")
	b := writeTestFile(t, outside, "deep/b.md", "b")
	writeTestFile(t, outside, "c.txt", "skipped")
	writeTestFile(t, docDir, "1.alias", outside+"\n")

	got, err := NewLister().List(context.Background(), docDir, []string{".md"})
	require.NoError(t, err)
	assert.Equal(t, sorted([]string{a, b}), sorted(got))
}

func TestAliasNestingIsBounded(t *testing.T) {
	docDir := t.TempDir()
	// Alias pointing back at its own directory recurses until the
	// depth limit trips.
	writeTestFile(t, docDir, "1.alias", docDir+"\n")

	_, err := NewLister().List(context.Background(), docDir, []string{".md"})
	assert.Error(t, err)
}

func TestGitRootNotFound(t *testing.T) {
	_, ok := GitRoot(t.TempDir())
	assert.False(t, ok)
}

func TestGitRootFindsEnclosingRepo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	nested := filepath.Join(dir, "pkg", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, ok := GitRoot(nested)
	require.True(t, ok)
	assert.Equal(t, dir, root)
}

func TestIgnoreRulesMatching(t *testing.T) {
	rules := &ignoreRules{patterns: []string{"*.log", "build", "docs/internal"}}

	assert.True(t, rules.matches("server.log"))
	assert.True(t, rules.matches("deep/nested/server.log"))
	assert.True(t, rules.matches("build/out.go"))
	assert.True(t, rules.matches("docs/internal"))
	assert.True(t, rules.matches("docs/internal/secret.md"))
	assert.False(t, rules.matches("docs/public/readme.md"))
	assert.False(t, rules.matches("main.go"))
}
