package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conorfennell/decktools/internal/domain"
	"github.com/conorfennell/decktools/internal/sfld"
)

// Tx groups the mutations of one tool run.
type Tx struct {
	tx   *sql.Tx
	path string
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.tx.Commit(); err != nil {
		return &DatabaseError{Path: tx.path, Op: "commit transaction", Err: err}
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (tx *Tx) Rollback() error {
	if err := tx.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return &DatabaseError{Path: tx.path, Op: "roll back transaction", Err: err}
	}
	return nil
}

// DeleteNotesBySortField removes every note whose sort field equals value.
func (tx *Tx) DeleteNotesBySortField(ctx context.Context, value string) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM notes WHERE sfld = ?`, value)
	if err != nil {
		return 0, &DatabaseError{Path: tx.path, Op: fmt.Sprintf("delete notes with sort field %q", value), Err: err}
	}
	return rowsAffected(res, tx.path)
}

// DeleteNotesByRawField removes every note whose raw fields contain value
// as the marked tail of a field (see sfld.RawMarker). The marker is bound as
// a parameter and matched literally.
func (tx *Tx) DeleteNotesByRawField(ctx context.Context, value string) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM notes WHERE instr(flds, ?) > 0`, sfld.RawMarker(value))
	if err != nil {
		return 0, &DatabaseError{Path: tx.path, Op: fmt.Sprintf("delete notes with raw field %q", value), Err: err}
	}
	return rowsAffected(res, tx.path)
}

// DeleteOrphanCards removes cards whose note no longer exists.
func (tx *Tx) DeleteOrphanCards(ctx context.Context) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM cards WHERE nid NOT IN (SELECT id FROM notes)`)
	if err != nil {
		return 0, &DatabaseError{Path: tx.path, Op: "delete orphaned cards", Err: err}
	}
	return rowsAffected(res, tx.path)
}

// UpdateScheduling overwrites the scheduling state and modification time of the
// cards with the given ordinal belonging to notes with the given sort field.
// It returns the number of cards changed, which may be zero.
func (tx *Tx) UpdateScheduling(ctx context.Context, sortField string, ord int, modified int64, s domain.Scheduling) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE cards
		SET mod = ?, type = ?, queue = ?, due = ?, ivl = ?, factor = ?, reps = ?, lapses = ?
		WHERE ord = ? AND nid IN (SELECT id FROM notes WHERE sfld = ?)
	`,
		modified,
		s.Type,
		s.Queue,
		s.Due,
		s.Interval,
		s.Factor,
		s.Reps,
		s.Lapses,
		ord,
		sortField,
	)
	if err != nil {
		return 0, &DatabaseError{Path: tx.path, Op: fmt.Sprintf("update card %d of %q", ord, sortField), Err: err}
	}
	return rowsAffected(res, tx.path)
}

func rowsAffected(res sql.Result, path string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &DatabaseError{Path: path, Op: "count affected rows", Err: err}
	}
	return n, nil
}
