// Package pagination implements cursor-based connection pagination: window
// argument resolution, sort-key normalization, seek predicates built from
// decoded cursors, and the connection result shape with lazy total counts.
package pagination

import "fmt"

const (
	// DefaultLimit is the page size used when the caller gives no bound.
	DefaultLimit = 25
	// MaxLimit caps the page size a caller can request.
	MaxLimit = 100
)

// Mode selects the traversal direction of a connection query.
type Mode string

const (
	ModeForward  Mode = "forward"
	ModeBackward Mode = "backward"
)

// Window holds the raw pagination arguments of a connection request. Nil
// limits and empty cursors mean the argument was omitted.
type Window struct {
	First  *int
	After  string
	Last   *int
	Before string
}

// Page is a resolved window: direction, effective page size, and the raw
// cursor to seek from, if any.
type Page struct {
	Mode   Mode
	Limit  int
	Cursor string
}

// HasCursor reports whether the page seeks from a cursor.
func (p Page) HasCursor() bool { return p.Cursor != "" }

// Resolve validates the window's argument combination and produces the
// effective page. Forward pagination pairs First with After; backward pairs
// Last with Before; the cross combinations are rejected.
func (w Window) Resolve(defaultLimit int) (Page, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}

	if w.First != nil && w.Last != nil {
		return Page{}, fmt.Errorf("cannot use both first and last")
	}
	if w.After != "" && w.Before != "" {
		return Page{}, fmt.Errorf("cannot use both after and before")
	}
	if w.Before != "" && w.Last == nil {
		return Page{}, fmt.Errorf("before requires last")
	}
	if w.Last != nil && w.After != "" {
		return Page{}, fmt.Errorf("last cannot be used with after")
	}
	if w.First != nil && w.Before != "" {
		return Page{}, fmt.Errorf("before cannot be used with first")
	}

	page := Page{Mode: ModeForward, Limit: clampLimit(defaultLimit)}
	if w.Last != nil {
		if *w.Last < 0 {
			return Page{}, fmt.Errorf("last must be non-negative")
		}
		page.Mode = ModeBackward
		page.Limit = clampLimit(*w.Last)
		page.Cursor = w.Before
		return page, nil
	}
	if w.First != nil {
		if *w.First < 0 {
			return Page{}, fmt.Errorf("first must be non-negative")
		}
		page.Limit = clampLimit(*w.First)
	}
	page.Cursor = w.After
	return page, nil
}

func clampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
