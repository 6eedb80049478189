// Package subtract removes from one deck every note that also appears in another.
package subtract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conorfennell/decktools/internal/apkg"
	"github.com/conorfennell/decktools/internal/storage"
)

// Options configures a subtraction.
type Options struct {
	Minuend    string // package to filter
	Subtrahend string // package whose notes are removed from the minuend
	Output     string

	// RawFieldMatch also removes minuend notes whose raw fields contain a
	// subtrahend sort field after a '>' marker. It is a workaround for decks
	// whose generator stored a wrong sort field and may over-match.
	RawFieldMatch bool
}

// Report summarizes a subtraction.
type Report struct {
	SortFields      int   // distinct sort fields in the subtrahend
	NotesDeleted    int64 // notes removed by exact sort field match
	RawNotesDeleted int64 // notes removed by raw field match
	CardsDeleted    int64 // cards removed because their note was removed
	Unmatched       int   // subtrahend sort fields that removed nothing
}

// Run writes to opts.Output a copy of the minuend without the notes whose
// sort field occurs in the subtrahend, along with their cards. Deck title and
// configuration are inherited from the minuend.
func Run(ctx context.Context, opts Options) (*Report, error) {
	values, err := readSortFields(ctx, opts.Subtrahend)
	if err != nil {
		return nil, err
	}
	report := &Report{SortFields: len(values)}

	pkg, err := apkg.Open(opts.Minuend)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	if len(values) == 0 {
		slog.Info("Subtrahend has no notes, copying minuend unchanged", "subtrahend", opts.Subtrahend)
	} else if err := filter(ctx, pkg.CollectionPath(), values, opts.RawFieldMatch, report); err != nil {
		return nil, err
	}

	if err := apkg.Write(pkg.CollectionPath(), opts.Output); err != nil {
		return nil, err
	}

	if report.Unmatched > 0 {
		slog.Warn("Some sort fields matched no notes in the minuend",
			"unmatched", report.Unmatched,
			"sort_fields", report.SortFields,
		)
	}
	slog.Info("Subtraction complete",
		"output", opts.Output,
		"notes_deleted", report.NotesDeleted,
		"raw_notes_deleted", report.RawNotesDeleted,
		"cards_deleted", report.CardsDeleted,
	)
	return report, nil
}

// readSortFields returns the distinct sort fields of the package at path.
func readSortFields(ctx context.Context, path string) ([]string, error) {
	pkg, err := apkg.Open(path)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	db, err := storage.OpenReadOnly(pkg.CollectionPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	values, err := db.SortFields(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("Read subtrahend sort fields", "path", path, "count", len(values))
	return values, nil
}

// filter deletes the matching notes and their cards from the collection at
// path in a single transaction.
func filter(ctx context.Context, path string, values []string, rawFieldMatch bool, report *Report) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if names, err := db.DeckNames(ctx); err == nil {
		slog.Debug("Filtering minuend", "decks", names, "sort_fields", len(values))
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, v := range values {
		var removed int64
		if rawFieldMatch {
			n, err := tx.DeleteNotesByRawField(ctx, v)
			if err != nil {
				return err
			}
			report.RawNotesDeleted += n
			removed += n
		}
		n, err := tx.DeleteNotesBySortField(ctx, v)
		if err != nil {
			return err
		}
		report.NotesDeleted += n
		removed += n

		if removed == 0 {
			report.Unmatched++
			slog.Debug("Sort field not in minuend", "sort_field", v)
		}
	}

	if report.CardsDeleted, err = tx.DeleteOrphanCards(ctx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
