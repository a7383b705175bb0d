package wellbeing

// Add returns list with item appended. list is not modified.
func Add[T Record](list []T, item T) []T {
	out := make([]T, len(list), len(list)+1)
	copy(out, list)
	return append(out, item)
}

// Replace returns list with the record sharing item's id replaced by item.
// The list is returned unchanged in content when no record matches.
func Replace[T Record](list []T, item T) []T {
	out := make([]T, len(list))
	for i, r := range list {
		if r.RecordID() == item.RecordID() {
			out[i] = item
		} else {
			out[i] = r
		}
	}
	return out
}

// RemoveByID returns list without the record with id. Records referring to
// it (such as sub-tasks) are kept.
func RemoveByID[T Record](list []T, id string) []T {
	out := make([]T, 0, len(list))
	for _, r := range list {
		if r.RecordID() != id {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record with id.
func Find[T Record](list []T, id string) (T, bool) {
	for _, r := range list {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}
