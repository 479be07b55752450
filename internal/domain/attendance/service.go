package attendance

import (
	"context"
)

// DecisionService decides how a punch is classified and judged
type DecisionService interface {
	// Preview runs the decision pipeline without touching storage. Safe for
	// sub-second polling; it never counts towards once-per-day limits.
	Preview(ctx context.Context, req PunchRequest) (Decision, error)

	// Commit runs the full pipeline and persists exactly one record on success
	Commit(ctx context.Context, req PunchRequest) (Decision, error)

	// HasRecord answers the absence sweep's per-slot query
	HasRecord(ctx context.Context, query HasRecordQuery) (HasRecordResponse, error)

	// GetRecord retrieves a committed record for audit
	GetRecord(ctx context.Context, id string) (RecordResponse, error)
}
