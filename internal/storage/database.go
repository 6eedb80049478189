package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/conorfennell/decktools/internal/domain"
	"github.com/conorfennell/decktools/internal/sfld"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DatabaseError reports a failure of the embedded collection database.
type DatabaseError struct {
	Path string
	Op   string
	Err  error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("failed to %s (%s): %v", e.Op, e.Path, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// DB represents a wrapper around a collection database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open connects to an existing collection for reading and writing.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DatabaseError{Path: path, Op: "open database", Err: err}
	}
	return connect(path, path)
}

// OpenReadOnly connects to an existing collection that must not be modified.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DatabaseError{Path: path, Op: "open database", Err: err}
	}
	return connect(path, "file:"+path+"?mode=ro")
}

// Create makes a new, empty collection holding a single deck with the given name.
func Create(path, deckName string) (*DB, error) {
	db, err := connect(path, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.conn.Exec(schema); err != nil {
		db.conn.Close()
		return nil, &DatabaseError{Path: path, Op: "apply schema", Err: err}
	}

	decks, err := json.Marshal(map[string]any{
		"1": map[string]any{"id": 1, "name": deckName},
	})
	if err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("failed to encode deck %q: %w", deckName, err)
	}
	now := time.Now()
	if _, err := db.conn.Exec(collectionRow, now.Unix(), now.UnixMilli(), now.UnixMilli(), string(decks)); err != nil {
		db.conn.Close()
		return nil, &DatabaseError{Path: path, Op: "insert collection row", Err: err}
	}
	return db, nil
}

func connect(path, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &DatabaseError{Path: path, Op: "open database", Err: err}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &DatabaseError{Path: path, Op: "connect to database", Err: err}
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DeckNames returns the names of the decks stored in the collection row, sorted.
func (db *DB) DeckNames(ctx context.Context) ([]string, error) {
	var raw string
	if err := db.conn.QueryRowContext(ctx, `SELECT decks FROM col LIMIT 1`).Scan(&raw); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "read deck names", Err: err}
	}

	var decks map[string]struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &decks); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "decode deck names", Err: err}
	}

	names := make([]string, 0, len(decks))
	for _, d := range decks {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names, nil
}

// SortFields returns the distinct sort field values of all notes.
func (db *DB) SortFields(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT sfld FROM notes`)
	if err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query sort fields", Err: err}
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, &DatabaseError{Path: db.path, Op: "scan sort field row", Err: err}
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query sort fields", Err: err}
	}
	return values, nil
}

// ScheduledCards returns every card joined with its note's sort field and raw fields.
func (db *DB) ScheduledCards(ctx context.Context) ([]domain.ScheduledCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT notes.sfld, notes.flds, cards.ord, cards.type, cards.queue, cards.due,
		       cards.ivl, cards.factor, cards.reps, cards.lapses
		FROM notes JOIN cards ON notes.id = cards.nid
		ORDER BY cards.id
	`)
	if err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query scheduled cards", Err: err}
	}
	defer rows.Close()

	var cards []domain.ScheduledCard
	for rows.Next() {
		var c domain.ScheduledCard
		if err := rows.Scan(
			&c.SortField,
			&c.Fields,
			&c.Ord,
			&c.Type,
			&c.Queue,
			&c.Due,
			&c.Interval,
			&c.Factor,
			&c.Reps,
			&c.Lapses,
		); err != nil {
			return nil, &DatabaseError{Path: db.path, Op: "scan scheduled card row", Err: err}
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query scheduled cards", Err: err}
	}
	return cards, nil
}

// Notes returns all notes ordered by ID.
func (db *DB) Notes(ctx context.Context) ([]domain.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, flds, sfld FROM notes ORDER BY id`)
	if err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query notes", Err: err}
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.Fields, &n.SortField); err != nil {
			return nil, &DatabaseError{Path: db.path, Op: "scan note row", Err: err}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query notes", Err: err}
	}
	return notes, nil
}

// Cards returns all cards ordered by ID.
func (db *DB) Cards(ctx context.Context) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, nid, ord, mod, type, queue, due, ivl, factor, reps, lapses
		FROM cards ORDER BY id
	`)
	if err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query cards", Err: err}
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(
			&c.ID,
			&c.NoteID,
			&c.Ord,
			&c.Modified,
			&c.Type,
			&c.Queue,
			&c.Due,
			&c.Interval,
			&c.Factor,
			&c.Reps,
			&c.Lapses,
		); err != nil {
			return nil, &DatabaseError{Path: db.path, Op: "scan card row", Err: err}
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "query cards", Err: err}
	}
	return cards, nil
}

// InsertNote inserts a new note and returns its ID.
func (db *DB) InsertNote(ctx context.Context, guid, flds, sortField string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		VALUES (?, 1, ?, -1, '', ?, ?, ?, 0, '')
	`,
		guid,
		time.Now().Unix(),
		flds,
		sortField,
		sfld.Checksum(sortField),
	)
	if err != nil {
		return 0, &DatabaseError{Path: db.path, Op: fmt.Sprintf("insert note %q", sortField), Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &DatabaseError{Path: db.path, Op: fmt.Sprintf("get last insert ID for note %q", sortField), Err: err}
	}
	return id, nil
}

// InsertCard inserts a card for a note with the given ordinal and scheduling state.
func (db *DB) InsertCard(ctx context.Context, noteID int64, ord int, s domain.Scheduling) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
		VALUES (?, 1, ?, ?, -1, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, '')
	`,
		noteID,
		ord,
		time.Now().Unix(),
		s.Type,
		s.Queue,
		s.Due,
		s.Interval,
		s.Factor,
		s.Reps,
		s.Lapses,
	)
	if err != nil {
		return 0, &DatabaseError{Path: db.path, Op: fmt.Sprintf("insert card %d for note %d", ord, noteID), Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &DatabaseError{Path: db.path, Op: fmt.Sprintf("get last insert ID for card %d of note %d", ord, noteID), Err: err}
	}
	return id, nil
}

// Begin starts the single transaction a tool run performs its changes in.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Path: db.path, Op: "begin transaction", Err: err}
	}
	return &Tx{tx: tx, path: db.path}, nil
}
