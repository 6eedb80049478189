// Package decktest builds and inspects deck packages for tests.
package decktest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/conorfennell/decktools/internal/apkg"
	"github.com/conorfennell/decktools/internal/domain"
	"github.com/conorfennell/decktools/internal/sfld"
	"github.com/conorfennell/decktools/internal/storage"
)

// Card describes a card to create for a note.
type Card struct {
	Ord int
	domain.Scheduling
}

// Note describes a note to create. Fields defaults to the sort field
// followed by a placeholder meaning.
type Note struct {
	SortField string
	Fields    string
	Cards     []Card
}

// NewCards returns unreviewed cards with the given ordinals.
func NewCards(ords ...int) []Card {
	cards := make([]Card, 0, len(ords))
	for _, ord := range ords {
		cards = append(cards, Card{Ord: ord, Scheduling: domain.Scheduling{Factor: 2500}})
	}
	return cards
}

// Build writes a package named name holding notes and returns its path.
func Build(t testing.TB, name string, notes ...Note) string {
	t.Helper()
	ctx := context.Background()

	collection := filepath.Join(t.TempDir(), apkg.CollectionName)
	db, err := storage.Create(collection, name)
	if err != nil {
		t.Fatalf("decktest: create collection: %v", err)
	}
	for i, n := range notes {
		flds := n.Fields
		if flds == "" {
			flds = sfld.Join(n.SortField, "meaning")
		}
		id, err := db.InsertNote(ctx, fmt.Sprintf("%s-%d", name, i), flds, n.SortField)
		if err != nil {
			db.Close()
			t.Fatalf("decktest: %v", err)
		}
		for _, c := range n.Cards {
			if _, err := db.InsertCard(ctx, id, c.Ord, c.Scheduling); err != nil {
				db.Close()
				t.Fatalf("decktest: %v", err)
			}
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("decktest: close collection: %v", err)
	}

	out := filepath.Join(t.TempDir(), name+".apkg")
	if err := apkg.Write(collection, out); err != nil {
		t.Fatalf("decktest: %v", err)
	}
	return out
}

// Contents is what a package holds.
type Contents struct {
	Decks []string
	Notes []domain.Note
	Cards []domain.Card
}

// Read extracts the package at path and returns its contents.
func Read(t testing.TB, path string) Contents {
	t.Helper()
	ctx := context.Background()

	pkg, err := apkg.Open(path)
	if err != nil {
		t.Fatalf("decktest: %v", err)
	}
	defer pkg.Close()

	db, err := storage.OpenReadOnly(pkg.CollectionPath())
	if err != nil {
		t.Fatalf("decktest: %v", err)
	}
	defer db.Close()

	var c Contents
	if c.Decks, err = db.DeckNames(ctx); err != nil {
		t.Fatalf("decktest: %v", err)
	}
	if c.Notes, err = db.Notes(ctx); err != nil {
		t.Fatalf("decktest: %v", err)
	}
	if c.Cards, err = db.Cards(ctx); err != nil {
		t.Fatalf("decktest: %v", err)
	}
	return c
}

// SortFields returns the sort fields of the notes, in note ID order.
func (c Contents) SortFields() []string {
	values := make([]string, 0, len(c.Notes))
	for _, n := range c.Notes {
		values = append(values, n.SortField)
	}
	return values
}

// CardsOf returns the cards of the note with the given sort field.
func (c Contents) CardsOf(sortField string) []domain.Card {
	var cards []domain.Card
	for _, n := range c.Notes {
		if n.SortField != sortField {
			continue
		}
		for _, card := range c.Cards {
			if card.NoteID == n.ID {
				cards = append(cards, card)
			}
		}
	}
	return cards
}
