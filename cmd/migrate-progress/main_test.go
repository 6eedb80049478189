package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conorfennell/decktools/internal/config"
	"github.com/conorfennell/decktools/internal/decktest"
	"github.com/conorfennell/decktools/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestMigrateProgress(t *testing.T) {
	reviewed := domain.Scheduling{Type: 2, Queue: 2, Due: 90, Interval: 12, Factor: 2650, Reps: 6, Lapses: 0}
	old := decktest.Build(t, "old", decktest.Note{
		SortField: "苹果",
		Cards: []decktest.Card{
			{Ord: 0, Scheduling: reviewed},
			{Ord: 1, Scheduling: reviewed},
			{Ord: 2, Scheduling: reviewed},
		},
	})
	newPath := decktest.Build(t, "new", decktest.Note{SortField: "苹果", Cards: decktest.NewCards(0, 1, 2, 3)})
	out := filepath.Join(t.TempDir(), "out.apkg")

	stdout, err := execute(t, "--old-primary=0", "--old-character=1", "--progress", old, newPath, out)
	if err != nil {
		t.Fatalf("command returned an unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Updated 3 cards from 3 old cards (1 without a role)") {
		t.Errorf("Unexpected summary %q", stdout)
	}

	var updated []int
	for _, c := range decktest.Read(t, out).CardsOf("苹果") {
		if c.Scheduling == reviewed {
			updated = append(updated, c.Ord)
		}
	}
	if len(updated) != 3 || updated[0] != 0 || updated[1] != 1 || updated[2] != 2 {
		t.Errorf("Expected ordinals [0 1 2] updated, but got %v", updated)
	}
}

func TestMigrateProgressConfigFile(t *testing.T) {
	reviewed := domain.Scheduling{Type: 2, Queue: 2, Due: 90, Interval: 3, Factor: 2500, Reps: 2}
	old := decktest.Build(t, "old", decktest.Note{
		SortField: "狗",
		Cards:     []decktest.Card{{Ord: 2, Scheduling: reviewed}},
	})
	newPath := decktest.Build(t, "new", decktest.Note{SortField: "狗", Cards: decktest.NewCards(0, 1, 2, 3)})
	out := filepath.Join(t.TempDir(), "out.apkg")
	configPath := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(configPath, []byte("old-primary: 0\nold-character: 1\nold-auxiliary: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "--config", configPath, old, newPath, out); err != nil {
		t.Fatalf("command returned an unexpected error: %v", err)
	}
	for _, c := range decktest.Read(t, out).CardsOf("狗") {
		if (c.Scheduling == reviewed) != (c.Ord == domain.OrdAuxiliary) {
			t.Errorf("Unexpected state for card ordinal %d: %+v", c.Ord, c.Scheduling)
		}
	}
}

func TestMigrateProgressMissingRole(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.apkg")
	_, err := execute(t, "--old-primary=0", "old.apkg", "new.apkg", out)
	var argErr *config.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("Expected an *config.ArgumentError, but got %v", err)
	}
	if !strings.Contains(err.Error(), "old-character is required") {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Expected no output on argument errors")
	}
}

func TestMigrateProgressMalformedFlag(t *testing.T) {
	_, err := execute(t, "--old-primary=abc", "--old-character=1", "old.apkg", "new.apkg", "out.apkg")
	var argErr *config.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("Expected an *config.ArgumentError, but got %v", err)
	}
	if !strings.Contains(err.Error(), "old-primary") {
		t.Errorf("Expected error to name the flag, but got %q", err.Error())
	}
}
