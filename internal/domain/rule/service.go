package rule

import "context"

// CatalogService is the read-only catalog view consumed by the decision engine.
type CatalogService interface {
	// Snapshot returns the current catalog, possibly served from a short-lived cache
	Snapshot(ctx context.Context) (Snapshot, error)

	// Person resolves a person and their department
	Person(ctx context.Context, id int64) (Person, error)

	// Invalidate drops cached catalog data. Called from the catalog write path.
	Invalidate()

	// Conflicts audits a freshly loaded catalog for data-quality problems
	Conflicts(ctx context.Context) (ConflictReport, error)
}
