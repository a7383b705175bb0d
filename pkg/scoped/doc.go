// Package scoped binds an in-memory value to an owner-scoped storage slot.
//
// A Store holds one value of type T. While an owner is set, the value lives in
// the slot "<base>_<owner>" and every Set is written through to it. Without an
// owner the store is ephemeral: values stay in memory and nothing is written.
//
// The store moves through three phases:
//
//	uninitialized --New--> hydrated(owner) | ephemeral
//	hydrated/ephemeral --SetOwner--> hydrated(owner') | ephemeral
//
// Each SetOwner re-reads the new slot and replaces the in-memory value, so one
// owner's data never shows up under another owner.
//
// When the storage implements core.Watchable, Start subscribes to changes made
// by other handles and adopts them (last write wins). A removal resets the
// value to the initial one.
//
// Usage:
//
//	notes, err := scoped.New(ctx, storage, "notes", []Note{}, session.CurrentOwner())
//	if err != nil { ... }
//	defer notes.Close()
//	_ = notes.Start(ctx)
//
//	err = notes.Update(ctx, func(prev []Note) []Note { return append(prev, n) })
//	if core.IsRecoverable(err) {
//		// the value is kept in memory but will not survive a restart
//	}
package scoped
