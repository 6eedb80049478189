// Package migrate copies review progress from an old deck onto a new deck
// that shares its notes.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/conorfennell/decktools/internal/apkg"
	"github.com/conorfennell/decktools/internal/domain"
	"github.com/conorfennell/decktools/internal/sfld"
	"github.com/conorfennell/decktools/internal/storage"
	"github.com/schollz/progressbar/v3"
)

// Options configures a migration.
type Options struct {
	Old    string // package holding the review progress
	New    string // package receiving it
	Output string

	// Roles names the old deck's card ordinal for each role.
	Roles domain.RoleMap

	// RawSortField derives each old note's sort field from its raw fields
	// instead of the stored value, for decks whose stored sort field is wrong.
	RawSortField bool

	// Progress receives a progress bar while updates are applied. Nil disables it.
	Progress io.Writer

	// Now stamps the modification time of updated cards. Defaults to time.Now.
	Now func() time.Time
}

// Report summarizes a migration.
type Report struct {
	Records   int   // cards read from the old deck
	Skipped   int   // old cards whose ordinal has no role
	Updated   int64 // cards changed in the new deck
	Unmatched int   // (sort field, ordinal) targets with no card in the new deck
}

// Run writes to opts.Output a copy of the new deck in which every card that
// matches an old card by sort field and role carries the old card's
// scheduling state. Note content and identifiers are left untouched.
func Run(ctx context.Context, opts Options) (*Report, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	records, err := readProgress(ctx, opts.Old, opts.RawSortField)
	if err != nil {
		return nil, err
	}
	report := &Report{Records: len(records)}

	pkg, err := apkg.Open(opts.New)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	if err := apply(ctx, pkg.CollectionPath(), records, opts, now().Unix(), report); err != nil {
		return nil, err
	}

	if err := apkg.Write(pkg.CollectionPath(), opts.Output); err != nil {
		return nil, err
	}

	if report.Unmatched > 0 {
		slog.Warn("Some old cards have no counterpart in the new deck",
			"unmatched", report.Unmatched,
			"records", report.Records,
		)
	}
	slog.Info("Migration complete",
		"output", opts.Output,
		"records", report.Records,
		"skipped", report.Skipped,
		"updated", report.Updated,
	)
	return report, nil
}

// readProgress returns the scheduled cards of the package at path.
func readProgress(ctx context.Context, path string, rawSortField bool) ([]domain.ScheduledCard, error) {
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

	records, err := db.ScheduledCards(ctx)
	if err != nil {
		return nil, err
	}
	if rawSortField {
		for i := range records {
			records[i].SortField = sfld.FromFields(records[i].Fields)
		}
	}
	slog.Debug("Read old deck progress", "path", path, "records", len(records), "raw_sort_field", rawSortField)
	return records, nil
}

// apply updates the collection at path in a single transaction.
func apply(ctx context.Context, path string, records []domain.ScheduledCard, opts Options, modified int64, report *Report) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bar := newBar(opts.Progress, len(records))
	for _, r := range records {
		bar.Add(1)

		targets := opts.Roles.Targets(r.Ord)
		if targets == nil {
			report.Skipped++
			continue
		}
		for _, ord := range targets {
			n, err := tx.UpdateScheduling(ctx, r.SortField, ord, modified, r.Scheduling)
			if err != nil {
				return err
			}
			if n == 0 {
				report.Unmatched++
				slog.Debug("No card to update", "sort_field", r.SortField, "ord", ord)
			}
			report.Updated += n
		}
	}
	bar.Finish()

	if err := tx.Commit(); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func newBar(w io.Writer, n int) *progressbar.ProgressBar {
	if w == nil {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Migrating progress"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)
}
