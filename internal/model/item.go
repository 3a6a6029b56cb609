package model

// Item is the domain model for a todo entry.
// IDs come from the server only; timestamps are passed through untouched.
type Item struct {
	ID          int64
	Title       string
	Description *string
	Completed   bool
	CreatedAt   string
	UpdatedAt   string
}

// Stats counts done and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}

// Index returns the position of the item with the given id, or -1.
func Index(items []Item, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy of items that shares no backing array with the input.
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
