package hackbench

import (
	"fmt"
	"path/filepath"
)

// Discover locates the hackbench source archive inside sourceDir. The
// first match in glob order wins, so a directory holding several
// candidate tarballs picks deterministically.
//
// Returns ErrTarballNotFound when nothing matches. Nothing may be
// staged, built, or run after that.
func Discover(sourceDir string) (string, error) {
	pattern := filepath.Join(sourceDir, SourceGlob)

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("globbing %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrTarballNotFound, sourceDir)
	}

	return matches[0], nil
}
