package process

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ArchiveInfo summarizes the contents of a source tarball.
type ArchiveInfo struct {
	Path        string
	Compression string // "gzip", "bzip2" or "none"
	RootDir     string // shared top-level entry, "" if entries are mixed
	Entries     int
	TotalSize   int64
	Escapes     bool // an entry path climbs out of the extraction dir
}

// ProbeArchive inspects a tarball without extracting it. The result is
// advisory: staging proceeds even when the probe fails.
func ProbeArchive(archivePath string) (*ArchiveInfo, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info := &ArchiveInfo{Path: archivePath}

	var reader io.Reader = f
	switch {
	case strings.HasSuffix(archivePath, ".bz2"):
		info.Compression = "bzip2"
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(archivePath, ".gz"):
		info.Compression = "gzip"
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	default:
		info.Compression = "none"
	}

	tr := tar.NewReader(reader)
	rootSeen := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}

		info.Entries++
		info.TotalSize += hdr.Size

		name := path.Clean(hdr.Name)
		if name == "." {
			continue
		}
		if name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
			info.Escapes = true
			continue
		}

		root := name
		if i := strings.IndexByte(name, '/'); i >= 0 {
			root = name[:i]
		}
		if !rootSeen {
			info.RootDir = root
			rootSeen = true
		} else if info.RootDir != root {
			info.RootDir = ""
		}
	}

	return info, nil
}

// HasRoot reports whether every entry lives under the given top-level
// directory.
func (i *ArchiveInfo) HasRoot(dir string) bool {
	return i.RootDir == dir
}

// String formats the probe result for logging.
func (i *ArchiveInfo) String() string {
	return fmt.Sprintf("%s compression=%s entries=%d size=%d root=%q",
		path.Base(i.Path), i.Compression, i.Entries, i.TotalSize, i.RootDir)
}
