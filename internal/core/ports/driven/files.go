package driven

import "context"

// FileLister enumerates the files of a document directory that match a
// set of extensions. Enumeration honours .gitignore files and .alias
// indirection; the strategy (git ls-files vs walking) is the adapter's
// concern.
type FileLister interface {
	// List returns absolute paths of all matching files under dir.
	List(ctx context.Context, dir string, extensions []string) ([]string, error)
}

// GitResolver locates and synchronises the git checkouts a document's
// files belong to.
type GitResolver interface {
	// Root returns the nearest enclosing git root of path, if any.
	Root(path string) (string, bool)

	// Pull synchronises the checkout at dir and returns the command
	// output.
	Pull(ctx context.Context, dir string) (string, error)
}
