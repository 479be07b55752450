package rule

import "context"

// CatalogRepository reads the rule catalog owned by the CRUD collaborator.
// Implementations never write to it.
type CatalogRepository interface {
	// LoadSnapshot reads active and inactive rules, the department tree and
	// the holiday table in one consistent pass.
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// PersonRepository resolves identified persons to their department.
type PersonRepository interface {
	// GetByID returns ErrPersonNotFound when the id is unknown
	GetByID(ctx context.Context, id int64) (Person, error)
}
