package query

import (
	"testing"

	"recordql/internal/meta"
)

// testRegistry declares the author/book/category graph the engine tests run
// against: one-to-many (author.books), many-to-one (book.author), inverse
// one-to-one (author.profile), and many-to-many (book.categories).
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
			{Name: "profile", Cardinality: meta.OneToOne, Target: "Profile", BackRefColumn: "author_id"},
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
			{
				Name:                 "categories",
				Cardinality:          meta.ManyToMany,
				Owning:               true,
				Target:               "Category",
				JunctionTable:        "books_categories",
				JunctionLocalColumn:  "book_id",
				JunctionRemoteColumn: "category_id",
			},
		},
	}
	profile := meta.Entity{
		Name: "Profile",
		Columns: []meta.Column{
			{Name: "id", Primary: true},
			{Name: "bio"},
			{Name: "authorId"},
		},
	}
	category := meta.Entity{
		Name: "Category",
		Columns: []meta.Column{
			{Name: "id", Primary: true},
			{Name: "name"},
		},
	}
	registry, err := meta.NewRegistry(author, book, profile, category)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func mustBuilder(t *testing.T, entity string) *Builder {
	t.Helper()
	b, err := NewBuilder(testRegistry(t), entity)
	if err != nil {
		t.Fatalf("NewBuilder(%s): %v", entity, err)
	}
	return b
}

func mustSQL(t *testing.T, b *Builder) (string, []interface{}) {
	t.Helper()
	sql, args, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	return sql, args
}
