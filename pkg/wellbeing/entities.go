// Package wellbeing holds the records kept by the feature pages (tasks,
// habits, finances, journal, quick notes, mood log, store items) and the
// Workspace that persists them for the signed-in owner.
package wellbeing

import (
	"time"

	"github.com/google/uuid"
)

// Record is anything stored in a feature list.
type Record interface {
	RecordID() string
}

// Task is a to-do item. Sub-tasks point to their parent through ParentID.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Done      bool       `json:"done"`
	ParentID  string     `json:"parentId,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (t Task) RecordID() string { return t.ID }

// NewTask creates a top-level task.
func NewTask(title string) Task {
	return Task{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()}
}

// NewSubtask creates a task under parent.
func NewSubtask(parent Task, title string) Task {
	t := NewTask(title)
	t.ParentID = parent.ID
	return t
}

// Subtasks returns the direct children of parentID, in list order.
func Subtasks(tasks []Task, parentID string) []Task {
	var out []Task
	for _, t := range tasks {
		if t.ParentID == parentID && parentID != "" {
			out = append(out, t)
		}
	}
	return out
}

// Habit is a recurring practice. Completions holds the days it was done,
// formatted as 2006-01-02.
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Completions []string  `json:"completions"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h Habit) RecordID() string { return h.ID }

// NewHabit creates a habit with no completions.
func NewHabit(name string) Habit {
	return Habit{ID: uuid.NewString(), Name: name, Completions: []string{}, CreatedAt: time.Now().UTC()}
}

const dayLayout = "2006-01-02"

// DoneOn reports whether the habit was completed on day.
func (h Habit) DoneOn(day time.Time) bool {
	d := day.Format(dayLayout)
	for _, c := range h.Completions {
		if c == d {
			return true
		}
	}
	return false
}

// Toggle marks or unmarks day and returns the updated habit.
func (h Habit) Toggle(day time.Time) Habit {
	d := day.Format(dayLayout)
	out := make([]string, 0, len(h.Completions)+1)
	found := false
	for _, c := range h.Completions {
		if c == d {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, d)
	}
	h.Completions = out
	return h
}

// Streak counts consecutive completed days ending at day.
func (h Habit) Streak(day time.Time) int {
	n := 0
	for h.DoneOn(day) {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// Kind of a transaction.
type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// Transaction is a money movement. Amounts are in cents and always positive;
// Kind gives the direction.
type Transaction struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Kind        Kind      `json:"kind"`
	Category    string    `json:"category,omitempty"`
	Date        time.Time `json:"date"`
}

func (t Transaction) RecordID() string { return t.ID }

// NewTransaction creates a transaction dated now.
func NewTransaction(description string, cents int64, kind Kind, category string) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		Description: description,
		AmountCents: cents,
		Kind:        kind,
		Category:    category,
		Date:        time.Now().UTC(),
	}
}

// Balance sums income minus expenses.
func Balance(txs []Transaction) int64 {
	var total int64
	for _, t := range txs {
		switch t.Kind {
		case Income:
			total += t.AmountCents
		case Expense:
			total -= t.AmountCents
		}
	}
	return total
}

// JournalEntry is a free-form journal page.
type JournalEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (j JournalEntry) RecordID() string { return j.ID }

// NewJournalEntry creates an entry dated now.
func NewJournalEntry(title, text string) JournalEntry {
	return JournalEntry{ID: uuid.NewString(), Title: title, Text: text, CreatedAt: time.Now().UTC()}
}

// QuickNote is a short sticky note.
type QuickNote struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Pinned    bool      `json:"pinned,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n QuickNote) RecordID() string { return n.ID }

// NewQuickNote creates an unpinned note.
func NewQuickNote(text string) QuickNote {
	return QuickNote{ID: uuid.NewString(), Text: text, CreatedAt: time.Now().UTC()}
}

// MoodRecord is one mood check-in, scored 1 (low) to 5 (high).
type MoodRecord struct {
	ID         string    `json:"id"`
	Score      int       `json:"score"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

func (m MoodRecord) RecordID() string { return m.ID }

// NewMoodRecord creates a check-in, clamping score to 1..5.
func NewMoodRecord(score int, note string) MoodRecord {
	score = min(max(score, 1), 5)
	return MoodRecord{ID: uuid.NewString(), Score: score, Note: note, RecordedAt: time.Now().UTC()}
}

// OwnedItems lists the ids of the items bought in the rewards store.
type OwnedItems []string

// Has reports whether item is owned.
func (o OwnedItems) Has(item string) bool {
	for _, id := range o {
		if id == item {
			return true
		}
	}
	return false
}

// With returns the list with item added once.
func (o OwnedItems) With(item string) OwnedItems {
	if o.Has(item) {
		return o
	}
	out := make(OwnedItems, len(o), len(o)+1)
	copy(out, o)
	return append(out, item)
}
