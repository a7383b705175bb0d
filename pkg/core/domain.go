// Package core holds the domain types and ports of mindful.
package core

import (
	"fmt"
	"strings"
)

// EventType represents the kind of change observed on a slot.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change to a storage slot made by another handle
// (another process, another open store, another host).
type Event struct {
	Type      EventType
	Key       string
	Value     []byte // raw slot content; nil when Removed
	Removed   bool
	Origin    string // name of the handle that produced the change, if known
	Timestamp int64  // Unix timestamp
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Key)
}

// OwnerSeparator joins a base key and an owner in a slot key.
// Owners never contain it, so the owner of a slot is whatever follows the
// last separator and no two (base, owner) pairs share a slot.
const OwnerSeparator = "_"

// SlotKey builds the effective storage key for a base key and an owner.
// An empty owner means there is no owner and the slot is not persisted,
// in which case SlotKey returns "". Owners must pass ValidateOwner.
func SlotKey(base, owner string) string {
	if owner == "" {
		return ""
	}
	return base + OwnerSeparator + owner
}

// ValidateOwner checks that owner can be part of a slot key.
func ValidateOwner(owner string) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidOwner)
	}
	if strings.Contains(owner, OwnerSeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidOwner, owner, OwnerSeparator)
	}
	if err := ValidateKey(owner); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOwner, err)
	}
	return nil
}

// BelongsTo reports whether key is a slot owned by owner.
func BelongsTo(key, owner string) bool {
	if ValidateOwner(owner) != nil {
		return false
	}
	i := strings.LastIndex(key, OwnerSeparator)
	return i > 0 && key[i+len(OwnerSeparator):] == owner
}

// ValidateKey checks that a key can be used as a slot name by every adapter.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}
	return nil
}
