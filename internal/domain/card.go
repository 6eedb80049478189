package domain

// Card ordinals used by the target deck layout.
const (
	OrdPrimary     = 0 // English prompt
	OrdSimplified  = 1
	OrdTraditional = 2
	OrdAuxiliary   = 3 // pinyin
)

// RoleAbsent marks a role the old deck does not have.
const RoleAbsent = -1

// Note is a row of the notes table. Fields holds the raw flds column, with
// individual fields separated by the unit separator byte.
type Note struct {
	ID        int64
	Fields    string
	SortField string
}

// Scheduling is the spaced-repetition state of a card.
// Type and Queue follow the collection format:
// Type 0: new, 1: learning, 2: review, 3: relearning
// Queue -1: suspended, 0: new, 1: learning, 2: review, 3: day learning
type Scheduling struct {
	Type     int
	Queue    int
	Due      int64
	Interval int
	Factor   int
	Reps     int
	Lapses   int
}

// Card is a row of the cards table.
type Card struct {
	ID       int64
	NoteID   int64
	Ord      int
	Modified int64 // seconds since epoch
	Scheduling
}

// ScheduledCard joins a card's scheduling state with the note it belongs to,
// as read from an old deck during progress migration.
type ScheduledCard struct {
	SortField string
	Fields    string
	Ord       int
	Scheduling
}

// RoleMap names which card ordinal of an old deck plays each role.
type RoleMap struct {
	Primary   int
	Character int
	Auxiliary int // RoleAbsent when the old deck has no auxiliary card
}

// Targets returns the ordinals in the new deck that a card with the given
// old ordinal maps onto. A nil result means the card has no role.
func (m RoleMap) Targets(ord int) []int {
	switch {
	case ord == m.Primary:
		return []int{OrdPrimary}
	case ord == m.Character:
		return []int{OrdSimplified, OrdTraditional}
	case m.Auxiliary != RoleAbsent && ord == m.Auxiliary:
		return []int{OrdAuxiliary}
	}
	return nil
}
