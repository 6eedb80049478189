package apkg

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// writeTestZip creates a zip at path with the given entries.
func writeTestZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.apkg")
	writeTestZip(t, path, map[string]string{
		CollectionName: "sqlite bytes",
		MediaName:      `{"0": "a.mp3"}`,
		"0":            "audio",
	})

	pkg, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}

	data, err := os.ReadFile(pkg.CollectionPath())
	if err != nil {
		t.Fatalf("failed to read extracted collection: %v", err)
	}
	if string(data) != "sqlite bytes" {
		t.Errorf("Expected extracted collection 'sqlite bytes', but got %q", data)
	}
	if _, err := os.Stat(filepath.Join(pkg.dir, "0")); err != nil {
		t.Errorf("Expected media entry to be extracted: %v", err)
	}

	if err := pkg.Close(); err != nil {
		t.Fatalf("Close() returned an unexpected error: %v", err)
	}
	if _, err := os.Stat(pkg.dir); !os.IsNotExist(err) {
		t.Errorf("Expected scratch directory to be removed, but stat returned %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected source package to be untouched: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "not-a-zip.apkg")
	if err := os.WriteFile(notZip, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	noCollection := filepath.Join(dir, "no-collection.apkg")
	writeTestZip(t, noCollection, map[string]string{MediaName: "{}"})

	escaping := filepath.Join(dir, "escaping.apkg")
	writeTestZip(t, escaping, map[string]string{
		CollectionName:  "db",
		"../outside.txt": "x",
	})

	testCases := []struct {
		name   string
		path   string
		target error
	}{
		{name: "Missing file", path: filepath.Join(dir, "missing.apkg")},
		{name: "Not a zip", path: notZip},
		{name: "No collection", path: noCollection, target: ErrNoCollection},
		{name: "Entry escapes directory", path: escaping},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkg, err := Open(tc.path)
			if err == nil {
				pkg.Close()
				t.Fatal("Expected an error, but got nil")
			}
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("Expected an *ExtractionError, but got %T: %v", err, err)
			}
			if extractErr.Path != tc.path {
				t.Errorf("Expected error path %q, but got %q", tc.path, extractErr.Path)
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Errorf("Expected error to wrap %v, but got %v", tc.target, err)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	collection := filepath.Join(dir, CollectionName)
	if err := os.WriteFile(collection, []byte("mutated db"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.apkg")
	if err := os.WriteFile(out, []byte("stale output"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Write(collection, out); err != nil {
		t.Fatalf("Write() returned an unexpected error: %v", err)
	}

	entries := readZip(t, out)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, but got %d: %v", len(entries), entries)
	}
	if entries[CollectionName] != "mutated db" {
		t.Errorf("Expected collection 'mutated db', but got %q", entries[CollectionName])
	}
	if entries[MediaName] != "{}\n" {
		t.Errorf("Expected empty media manifest, but got %q", entries[MediaName])
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o644 {
		t.Errorf("Expected output mode 0644, but got %v", mode)
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, ".decktools-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("Expected no temporary files left behind, but found %v", leftovers)
	}
}

func TestWriteMissingCollection(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.apkg")
	if err := Write(filepath.Join(dir, "missing.anki2"), out); err == nil {
		t.Fatal("Expected an error for a missing collection, but got nil")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Expected no output package to be created")
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	collection := filepath.Join(dir, CollectionName)
	if err := os.WriteFile(collection, []byte("round trip"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "deck.apkg")
	if err := Write(collection, out); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	pkg, err := Open(out)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer pkg.Close()

	data, err := os.ReadFile(pkg.CollectionPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "round trip" {
		t.Errorf("Expected 'round trip', but got %q", data)
	}
}
