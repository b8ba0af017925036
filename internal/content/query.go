package content

import (
	"fmt"
	"strings"

	"github.com/inkwellhq/inkwell/internal/feed"
)

// OrderField selects the column a listing is sorted on.
type OrderField string

const (
	// OrderByCreatedAt sorts by publication recency (the default).
	OrderByCreatedAt OrderField = "created_at"
	// OrderByViews sorts by view count, ties broken by recency.
	OrderByViews OrderField = "views"
)

// FilterState is the raw filter input a view holds. Zero values mean "no
// predicate": an empty category or search term never reaches the query.
type FilterState struct {
	Category     string
	ExcludeID    string
	SearchTerm   string
	OnlyFeatured bool
	OrderBy      OrderField
	Ascending    bool
	Limit        int
}

// Descriptor is the normalized, deterministic form of a FilterState. It is a
// pure value: building one performs no I/O, and two descriptors built from
// equivalent filter states are identical.
type Descriptor struct {
	category     string
	excludeID    string
	searchTerm   string
	onlyFeatured bool
	orderBy      OrderField
	ascending    bool
	limit        int
}

// Descriptor normalizes the filter state into a query descriptor.
func (f FilterState) Descriptor() Descriptor {
	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = OrderByCreatedAt
	}
	return Descriptor{
		category:     strings.TrimSpace(f.Category),
		excludeID:    strings.TrimSpace(f.ExcludeID),
		searchTerm:   strings.ToLower(strings.TrimSpace(f.SearchTerm)),
		onlyFeatured: f.OnlyFeatured,
		orderBy:      orderBy,
		ascending:    f.Ascending,
		limit:        f.Limit,
	}
}

// Clause is one WHERE predicate as pure data, combined with AND by the
// executing layer.
type Clause struct {
	Expr string
	Args []any
}

// WhereClauses returns the active predicates. Absent filter values produce no
// clause at all rather than an always-true condition.
func (d Descriptor) WhereClauses() []Clause {
	clauses := make([]Clause, 0, 4)
	if d.category != "" {
		clauses = append(clauses, Clause{Expr: "category = ?", Args: []any{d.category}})
	}
	if d.searchTerm != "" {
		pattern := "%" + d.searchTerm + "%"
		clauses = append(clauses, Clause{
			Expr: "(lower(title) LIKE ? OR lower(excerpt) LIKE ? OR lower(content) LIKE ?)",
			Args: []any{pattern, pattern, pattern},
		})
	}
	if d.onlyFeatured {
		clauses = append(clauses, Clause{Expr: "featured = ?", Args: []any{true}})
	}
	if d.excludeID != "" {
		clauses = append(clauses, Clause{Expr: "post_id <> ?", Args: []any{d.excludeID}})
	}
	return clauses
}

// OrderExpr returns the deterministic ORDER BY expression. Sorting by views
// always carries an explicit recency tie-break.
func (d Descriptor) OrderExpr() string {
	direction := "DESC"
	if d.ascending {
		direction = "ASC"
	}
	if d.orderBy == OrderByViews {
		return fmt.Sprintf("views %s, created_at_s DESC", direction)
	}
	return fmt.Sprintf("created_at_s %s", direction)
}

// Limit returns the row cap, zero meaning unlimited.
func (d Descriptor) Limit() int {
	return d.limit
}

// Fingerprint identifies the descriptor for change detection: a view only
// re-queries when the fingerprint differs from the previous one.
func (d Descriptor) Fingerprint() string {
	return fmt.Sprintf("cat=%s|excl=%s|q=%s|feat=%t|ord=%s|asc=%t|lim=%d",
		d.category, d.excludeID, d.searchTerm, d.onlyFeatured, d.orderBy, d.ascending, d.limit)
}

// Matches reports whether the record belongs to the collection this
// descriptor describes. An error means membership cannot be decided from the
// record alone and the caller should refetch.
func (d Descriptor) Matches(record feed.Record) (bool, error) {
	post, ok := record.(Post)
	if !ok {
		return false, fmt.Errorf("content: descriptor cannot evaluate record of type %T", record)
	}
	if d.category != "" && post.Category != d.category {
		return false, nil
	}
	if d.excludeID != "" && post.PostID == d.excludeID {
		return false, nil
	}
	if d.onlyFeatured && !post.Featured {
		return false, nil
	}
	if d.searchTerm != "" {
		haystack := strings.ToLower(post.Title + "\n" + post.Excerpt + "\n" + post.Content)
		if !strings.Contains(haystack, d.searchTerm) {
			return false, nil
		}
	}
	return true, nil
}

// Less orders two records under the active sort. Ties fall back to the post
// identifier so the order is total and stable.
func (d Descriptor) Less(a, b feed.Record) bool {
	left, okLeft := a.(Post)
	right, okRight := b.(Post)
	if !okLeft || !okRight {
		return false
	}
	if d.orderBy == OrderByViews {
		if left.Views != right.Views {
			if d.ascending {
				return left.Views < right.Views
			}
			return left.Views > right.Views
		}
		if left.CreatedAtSeconds != right.CreatedAtSeconds {
			return left.CreatedAtSeconds > right.CreatedAtSeconds
		}
		return left.PostID < right.PostID
	}
	if left.CreatedAtSeconds != right.CreatedAtSeconds {
		if d.ascending {
			return left.CreatedAtSeconds < right.CreatedAtSeconds
		}
		return left.CreatedAtSeconds > right.CreatedAtSeconds
	}
	return left.PostID < right.PostID
}
