package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driving"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
	"github.com/nullmastermind/nullgpt-indexer/internal/registry"
)

// aliasFileName is the editable alias file inside a document directory.
// Each line names a path outside the directory to include on index runs.
const aliasFileName = "1.alias"

// DocumentsDeps wires the document service's collaborators.
type DocumentsDeps struct {
	// DocsDir is the root holding one directory per document.
	DocsDir string

	// IndexDir is the root holding per-document index artifacts.
	IndexDir string

	// Store holds per-document metadata keys.
	Store driven.KeyValueStore

	// Registry is notified when a document's artifacts are removed.
	Registry *registry.Registry

	// Git resolves and synchronises the checkouts documents reference.
	Git driven.GitResolver
}

// Documents manages document directories, their alias files, and their
// index artifacts.
type Documents struct {
	deps DocumentsDeps
}

var _ driving.DocumentService = (*Documents)(nil)

// NewDocuments creates the document service.
func NewDocuments(deps DocumentsDeps) *Documents {
	return &Documents{deps: deps}
}

// List merges document IDs found under the index root (indexed) and the
// docs root (defined but possibly never indexed), newest index first.
func (d *Documents) List(ctx context.Context) ([]domain.Document, error) {
	indexed, err := listDirNames(d.deps.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("reading index root: %w", err)
	}
	defined, err := listDirNames(d.deps.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("reading docs root: %w", err)
	}

	seen := make(map[string]struct{}, len(indexed))
	var docs []domain.Document
	for _, id := range indexed {
		seen[id] = struct{}{}
		docs = append(docs, d.describe(ctx, id, true))
	}
	for _, id := range defined {
		if _, dup := seen[id]; dup {
			continue
		}
		docs = append(docs, d.describe(ctx, id, false))
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].IndexedAt.After(docs[j].IndexedAt)
	})
	return docs, nil
}

// describe assembles one document's metadata from the key-value store.
// Missing keys degrade to zero values rather than failing the listing.
func (d *Documents) describe(ctx context.Context, id string, isIndexed bool) domain.Document {
	doc := domain.Document{ID: id, IsIndexed: isIndexed}

	if _, err := d.deps.Store.Get(ctx, id+":extensions", &doc.Extensions); err != nil {
		logger.Debug("reading extensions for %s: %v", id, err)
	}
	var indexAt time.Time
	if found, err := d.deps.Store.Get(ctx, id+":indexAt", &indexAt); err == nil && found {
		doc.IndexedAt = indexAt
	}
	return doc
}

// listDirNames returns the visible directory names under root. A
// missing root lists as empty.
func listDirNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Add creates the document's directory. Creating an existing document
// is a no-op.
func (d *Documents) Add(ctx context.Context, docID string) error {
	if err := validateDocID(docID); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(d.deps.DocsDir, docID), 0755); err != nil {
		return fmt.Errorf("creating document %s: %w", docID, err)
	}
	return nil
}

// Remove deletes the document's index artifacts when they exist,
// otherwise its source directory. Removing an unknown document is a
// no-op.
func (d *Documents) Remove(ctx context.Context, docID string) error {
	if err := validateDocID(docID); err != nil {
		return err
	}

	indexDir := filepath.Join(d.deps.IndexDir, docID)
	if _, err := os.Stat(indexDir); err == nil {
		if err := os.RemoveAll(indexDir); err != nil {
			return fmt.Errorf("removing index of %s: %w", docID, err)
		}
		if d.deps.Registry != nil {
			d.deps.Registry.Evict(docID)
		}
		return nil
	}

	docDir := filepath.Join(d.deps.DocsDir, docID)
	if _, err := os.Stat(docDir); err == nil {
		if err := os.RemoveAll(docDir); err != nil {
			return fmt.Errorf("removing document %s: %w", docID, err)
		}
	}
	return nil
}

// UpdateAlias replaces the document's alias file content.
func (d *Documents) UpdateAlias(ctx context.Context, docID, content string) error {
	if err := validateDocID(docID); err != nil {
		return err
	}

	docDir := filepath.Join(d.deps.DocsDir, docID)
	if info, err := os.Stat(docDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, docID)
	}

	aliasPath := filepath.Join(docDir, aliasFileName)
	if err := os.WriteFile(aliasPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing alias file for %s: %w", docID, err)
	}
	return nil
}

// Manifest lists the document's own files plus its alias entries. Alias
// entries are editable through UpdateAlias; directory files are not.
func (d *Documents) Manifest(ctx context.Context, docID string) ([]domain.ManagedFile, error) {
	if err := validateDocID(docID); err != nil {
		return nil, err
	}

	docDir := filepath.Join(d.deps.DocsDir, docID)
	entries, err := os.ReadDir(docDir)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, docID)
	}

	var files []domain.ManagedFile
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".alias") {
			continue
		}
		path := filepath.Join(docDir, e.Name())
		files = append(files, d.managed(path, false, true))
	}

	for _, entry := range readAliasLines(filepath.Join(docDir, aliasFileName)) {
		_, statErr := os.Stat(entry)
		files = append(files, d.managed(entry, true, statErr == nil))
	}
	return files, nil
}

// managed builds one manifest entry, resolving its git root when the
// path exists inside a checkout.
func (d *Documents) managed(path string, editable, exists bool) domain.ManagedFile {
	file := domain.ManagedFile{Path: path, Editable: editable, Exists: exists}
	if exists && d.deps.Git != nil {
		if root, ok := d.deps.Git.Root(path); ok {
			file.GitRoot = root
		}
	}
	return file
}

// GitPull synchronises every git checkout the document references, the
// document directory's own included, and returns the combined output.
// A failing pull is reported in the output, not fatal to the rest.
func (d *Documents) GitPull(ctx context.Context, docID string) (string, error) {
	if d.deps.Git == nil {
		return "", fmt.Errorf("git pull for %s: %w", docID, domain.ErrInvalidInput)
	}

	files, err := d.Manifest(ctx, docID)
	if err != nil {
		return "", err
	}

	roots := make(map[string]struct{})
	var order []string
	add := func(path string) {
		root, ok := d.deps.Git.Root(path)
		if !ok {
			return
		}
		if _, dup := roots[root]; dup {
			return
		}
		roots[root] = struct{}{}
		order = append(order, root)
	}

	add(filepath.Join(d.deps.DocsDir, docID))
	for _, f := range files {
		if f.Exists {
			add(f.Path)
		}
	}

	var out strings.Builder
	for _, root := range order {
		output, err := d.deps.Git.Pull(ctx, root)
		if err != nil {
			logger.Warn("pulling %s: %v", root, err)
			fmt.Fprintf(&out, "%s: %v\n", root, err)
		}
		out.WriteString(output)
	}
	return out.String(), nil
}

// readAliasLines returns the trimmed, non-empty lines of an alias file.
// A missing file reads as empty.
func readAliasLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// validateDocID rejects IDs that would escape the docs root.
func validateDocID(docID string) error {
	if docID == "" || docID == "." || docID == ".." ||
		strings.ContainsAny(docID, `/\`) {
		return fmt.Errorf("%w: doc_id %q", domain.ErrInvalidInput, docID)
	}
	return nil
}
