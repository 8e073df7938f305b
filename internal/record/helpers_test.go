package record

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"recordql/internal/dbexec"
	"recordql/internal/meta"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) *meta.Registry {
	t.Helper()
	author := meta.Entity{
		Name: "Author",
		Columns: []meta.Column{
			{Name: "id", Primary: true},
			{Name: "firstName"},
			{Name: "lastName"},
			{Name: "registered", Kind: meta.KindBool},
			{Name: "createdAt", Kind: meta.KindTime},
			{Name: "createdById", Nullable: true},
			{Name: "updatedAt", Kind: meta.KindTime, Nullable: true},
			{Name: "updatedById", Nullable: true},
			{Name: "deletedAt", Kind: meta.KindTime, Nullable: true},
			{Name: "deletedById", Nullable: true},
		},
		Relations: []meta.Relation{
			{Name: "books", Cardinality: meta.OneToMany, Target: "Book", BackRefColumn: "author_id"},
		},
	}
	book := meta.Entity{
		Name: "Book",
		Columns: []meta.Column{
			{Name: "id", Primary: true},
			{Name: "title"},
			{Name: "starRating", Kind: meta.KindInt},
			{Name: "authorId", Nullable: true},
			{Name: "deletedAt", Kind: meta.KindTime, Nullable: true},
		},
		Relations: []meta.Relation{
			{Name: "author", Cardinality: meta.ManyToOne, Owning: true, Target: "Author", JoinColumn: "author_id"},
		},
	}
	registry, err := meta.NewRegistry(author, book)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

// authorColumns matches the Author entity's full projection scan order.
var authorColumns = []string{
	"id", "first_name", "last_name", "registered",
	"created_at", "created_by_id", "updated_at", "updated_by_id",
	"deleted_at", "deleted_by_id",
}

// authorRows builds a full-projection result set; each triple is
// id, firstName, lastName with fixed values for the remaining columns.
func authorRows(triples ...[3]string) *sqlmock.Rows {
	rows := sqlmock.NewRows(authorColumns)
	for _, tr := range triples {
		rows.AddRow(tr[0], tr[1], tr[2], true, testTime, "u0", nil, nil, nil, nil)
	}
	return rows
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	counter := 0
	svc := NewService(testRegistry(t), dbexec.NewDBExecutor(db), Options{
		Now: func() time.Time { return testTime },
		NewID: func() string {
			counter++
			return fmt.Sprintf("gen-%d", counter)
		},
	})
	return svc, mock, db
}
