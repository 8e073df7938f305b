package pagination

import (
	"context"
	"sync"
)

// Edge pairs one record with the cursor that re-locates it.
type Edge struct {
	Node   map[string]interface{}
	Cursor string
}

// PageInfo describes the page boundaries of a connection.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

// CountFunc produces the connection's total matching-row count.
type CountFunc func(ctx context.Context) (int64, error)

// Connection is one resolved page plus a lazy total count. The count query
// runs at most once, on first use, regardless of how many goroutines ask.
type Connection struct {
	Edges    []Edge
	PageInfo PageInfo

	countFn CountFunc

	mu      sync.Mutex
	counted bool
	count   int64
}

// NewConnection assembles a connection from already-paged edges.
func NewConnection(edges []Edge, info PageInfo, countFn CountFunc) *Connection {
	if edges == nil {
		edges = []Edge{}
	}
	return &Connection{Edges: edges, PageInfo: info, countFn: countFn}
}

// TotalCount returns the number of rows matching the connection's filter,
// ignoring the pagination window. Computed lazily and cached.
func (c *Connection) TotalCount(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counted {
		return c.count, nil
	}
	if c.countFn == nil {
		c.counted = true
		return 0, nil
	}
	count, err := c.countFn(ctx)
	if err != nil {
		return 0, err
	}
	c.count = count
	c.counted = true
	return count, nil
}

// TrimPage removes the over-fetched probe row and reports whether more rows
// exist beyond the page. limit+1 rows are requested so the presence of the
// extra row is the look-ahead signal.
func TrimPage(rows []map[string]interface{}, limit int) ([]map[string]interface{}, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

// RestoreOrder undoes the reversed sort of a backward query so rows come
// back in the caller's requested order. Forward pages pass through.
func RestoreOrder(rows []map[string]interface{}, mode Mode) []map[string]interface{} {
	if mode != ModeBackward {
		return rows
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

// BuildPageInfo derives the page boundary flags for the resolved mode.
// The look-ahead row signals the next page in the traversal direction; the
// presence of a cursor implies at least one row on the other side of it.
func BuildPageInfo(edges []Edge, mode Mode, overflow, hadCursor bool) PageInfo {
	info := PageInfo{}
	if mode == ModeBackward {
		info.HasPreviousPage = overflow
		info.HasNextPage = hadCursor
	} else {
		info.HasNextPage = overflow
		info.HasPreviousPage = hadCursor
	}
	if len(edges) > 0 {
		info.StartCursor = edges[0].Cursor
		info.EndCursor = edges[len(edges)-1].Cursor
	}
	return info
}
