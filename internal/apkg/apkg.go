// Package apkg reads and writes deck packages: zip containers holding the
// collection database and a media manifest.
package apkg

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
)

const (
	// CollectionName is the conventional name of the embedded database.
	CollectionName = "collection.anki2"
	// MediaName is the name of the media manifest.
	MediaName = "media"
)

// emptyMedia is the manifest written to every output package; media files
// of the input are not carried over.
var emptyMedia = []byte("{}\n")

// ErrNoCollection is returned when a package lacks the embedded database.
var ErrNoCollection = errors.New("package has no " + CollectionName)

// ExtractionError reports a package that could not be unpacked.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Package is a deck package extracted into its own scratch directory.
type Package struct {
	dir string
}

// Open extracts the package at path into a fresh scratch directory.
// The source file is left untouched. Close removes the scratch directory.
func Open(path string) (*Package, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer r.Close()

	dir, err := os.MkdirTemp("", "decktools-*")
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	found := false
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractFile(f, dir); err != nil {
			os.RemoveAll(dir)
			return nil, &ExtractionError{Path: path, Err: err}
		}
		if f.Name == CollectionName {
			found = true
		}
	}
	if !found {
		os.RemoveAll(dir)
		return nil, &ExtractionError{Path: path, Err: ErrNoCollection}
	}

	slog.Debug("Extracted package", "path", path, "dir", dir, "entries", len(r.File))
	return &Package{dir: dir}, nil
}

func extractFile(f *zip.File, dir string) error {
	if !filepath.IsLocal(f.Name) {
		return fmt.Errorf("entry %q escapes the extraction directory", f.Name)
	}
	dest := filepath.Join(dir, f.Name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract entry %s: %w", f.Name, err)
	}
	return out.Close()
}

// CollectionPath returns the path of the extracted database.
func (p *Package) CollectionPath() string {
	return filepath.Join(p.dir, CollectionName)
}

// Close removes the scratch directory.
func (p *Package) Close() error {
	if err := os.RemoveAll(p.dir); err != nil {
		return fmt.Errorf("failed to remove scratch directory %s: %w", p.dir, err)
	}
	return nil
}

// Write packages the database at collectionPath together with an empty media
// manifest into a new package at outPath, replacing any existing file.
// The package is assembled in a temporary file next to outPath and renamed
// into place once complete.
func Write(collectionPath, outPath string) error {
	src, err := os.Open(collectionPath)
	if err != nil {
		return fmt.Errorf("failed to open collection %s: %w", collectionPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".decktools-*.apkg")
	if err != nil {
		return fmt.Errorf("failed to create output for %s: %w", outPath, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := writeZip(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write package %s: %w", outPath, err)
	}
	// CreateTemp opens with 0600; packages are shared files.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set mode of package %s: %w", outPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write package %s: %w", outPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("failed to move package into place at %s: %w", outPath, err)
	}

	if info, err := os.Stat(outPath); err == nil {
		slog.Info("Wrote package", "path", outPath, "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func writeZip(w io.Writer, collection io.Reader) error {
	zw := zip.NewWriter(w)

	cw, err := zw.Create(CollectionName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, collection); err != nil {
		return err
	}

	mw, err := zw.Create(MediaName)
	if err != nil {
		return err
	}
	if _, err := mw.Write(emptyMedia); err != nil {
		return err
	}

	return zw.Close()
}
