package wellbeing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/wellbeing"
)

func TestListHelpers(t *testing.T) {
	parent := wellbeing.NewTask("move house")
	child := wellbeing.NewSubtask(parent, "pack books")
	other := wellbeing.NewTask("call mom")

	tasks := wellbeing.Add(nil, parent)
	tasks = wellbeing.Add(tasks, child)
	tasks = wellbeing.Add(tasks, other)
	require.Len(t, tasks, 3)
	assert.NotEqual(t, parent.ID, child.ID)

	done := child
	done.Done = true
	replaced := wellbeing.Replace(tasks, done)
	assert.True(t, replaced[1].Done)
	assert.False(t, tasks[1].Done, "input list is not modified")

	assert.Equal(t, []wellbeing.Task{child}, wellbeing.Subtasks(tasks, parent.ID))

	// Removing a parent keeps its orphaned sub-tasks.
	remaining := wellbeing.RemoveByID(tasks, parent.ID)
	assert.Len(t, remaining, 2)
	_, ok := wellbeing.Find(remaining, child.ID)
	assert.True(t, ok)
	_, ok = wellbeing.Find(remaining, parent.ID)
	assert.False(t, ok)
}

func TestHabit_ToggleAndStreak(t *testing.T) {
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h := wellbeing.NewHabit("meditate")

	h = h.Toggle(day).Toggle(day.AddDate(0, 0, -1)).Toggle(day.AddDate(0, 0, -2))
	assert.True(t, h.DoneOn(day))
	assert.Equal(t, 3, h.Streak(day))

	h = h.Toggle(day.AddDate(0, 0, -1))
	assert.False(t, h.DoneOn(day.AddDate(0, 0, -1)))
	assert.Equal(t, 1, h.Streak(day))
}

func TestBalance(t *testing.T) {
	txs := []wellbeing.Transaction{
		wellbeing.NewTransaction("salary", 250000, wellbeing.Income, "work"),
		wellbeing.NewTransaction("rent", 120000, wellbeing.Expense, "home"),
		wellbeing.NewTransaction("coffee", 450, wellbeing.Expense, "food"),
	}
	assert.Equal(t, int64(129550), wellbeing.Balance(txs))
}

func TestMoodScoreIsClamped(t *testing.T) {
	assert.Equal(t, 5, wellbeing.NewMoodRecord(9, "").Score)
	assert.Equal(t, 1, wellbeing.NewMoodRecord(-2, "").Score)
	assert.Equal(t, 3, wellbeing.NewMoodRecord(3, "ok").Score)
}

func TestOwnedItems(t *testing.T) {
	var items wellbeing.OwnedItems
	items = items.With("theme-forest").With("theme-forest").With("sound-rain")
	assert.Equal(t, wellbeing.OwnedItems{"theme-forest", "sound-rain"}, items)
	assert.True(t, items.Has("sound-rain"))
	assert.False(t, items.Has("theme-ocean"))
}
