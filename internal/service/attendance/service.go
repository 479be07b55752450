package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/google/uuid"
)

// Settings tune the decision pipeline.
type Settings struct {
	// Location converts punch timestamps to a calendar date and time of day
	Location *time.Location
	// MinConfidence is the recognition confidence below which a punch is
	// treated as unidentified
	MinConfidence float64
}

type DecisionServiceImpl struct {
	catalog rule.CatalogService
	attendance.RecordRepository
	settings Settings
	metrics  *metrics.Collectors
	hub      *sse.Hub
	now      func() time.Time
}

// NewDecisionService wires the decision pipeline. collectors and hub may be nil.
func NewDecisionService(
	catalog rule.CatalogService,
	recordRepository attendance.RecordRepository,
	settings Settings,
	collectors *metrics.Collectors,
	hub *sse.Hub,
) attendance.DecisionService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &DecisionServiceImpl{
		catalog:          catalog,
		RecordRepository: recordRepository,
		settings:         settings,
		metrics:          collectors,
		hub:              hub,
		now:              time.Now,
	}
}

// punchContext is what the pipeline derived for one punch.
type punchContext struct {
	person rule.Person
	rule   rule.Rule
	local  time.Time
	date   time.Time
	status Status
}

// Preview implements attendance.DecisionService.
func (s *DecisionServiceImpl) Preview(ctx context.Context, req attendance.PunchRequest) (attendance.Decision, error) {
	start := time.Now()
	decision, _, err := s.decide(ctx, attendance.ModePreview, req)
	if err == nil {
		decision.Accepted = true
	}
	s.metrics.ObserveDecision(string(attendance.ModePreview), outcomeOf(err), time.Since(start))
	return decision, err
}

// Commit implements attendance.DecisionService.
func (s *DecisionServiceImpl) Commit(ctx context.Context, req attendance.PunchRequest) (attendance.Decision, error) {
	start := time.Now()
	decision, err := s.commit(ctx, req)
	s.metrics.ObserveDecision(string(attendance.ModeCommit), outcomeOf(err), time.Since(start))
	return decision, err
}

func (s *DecisionServiceImpl) commit(ctx context.Context, req attendance.PunchRequest) (attendance.Decision, error) {
	decision, pc, err := s.decide(ctx, attendance.ModeCommit, req)
	if err != nil {
		return decision, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return decision, fmt.Errorf("%w: failed to generate record id: %v", attendance.ErrStorageUnavailable, err)
	}

	ruleID := pc.rule.ID
	record := attendance.Record{
		ID:           id.String(),
		PersonID:     pc.person.ID,
		PunchedAt:    req.CapturedAt.UTC(),
		PunchDate:    pc.date,
		CheckType:    decision.CheckType,
		IsLate:       pc.status.IsLate,
		IsEarly:      pc.status.IsEarly,
		MinutesLate:  pc.status.MinutesLate,
		MinutesEarly: pc.status.MinutesEarly,
		RuleID:       &ruleID,
		Confidence:   req.Confidence,
		EvidenceRef:  req.EvidenceRef,
		OncePerDay:   pc.rule.OncePerDay,
		CreatedAt:    s.now().UTC(),
	}

	created, err := s.RecordRepository.Create(ctx, record)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrDuplicatePunch):
			slog.InfoContext(ctx, "duplicate punch rejected",
				"person_id", pc.person.ID,
				"date", decision.Date,
				"check_type", decision.CheckType,
			)
			return decision, err
		case errors.Is(err, attendance.ErrStorageUnavailable):
			slog.ErrorContext(ctx, "failed to record punch", "person_id", pc.person.ID, "error", err)
			return decision, err
		default:
			slog.ErrorContext(ctx, "failed to record punch", "person_id", pc.person.ID, "error", err)
			return decision, fmt.Errorf("%w: %w", attendance.ErrStorageUnavailable, err)
		}
	}

	decision.Accepted = true
	decision.RecordID = &created.ID

	slog.InfoContext(ctx, "punch recorded",
		"record_id", created.ID,
		"person_id", created.PersonID,
		"rule_id", ruleID,
		"check_type", created.CheckType,
		"is_late", created.IsLate,
		"is_early", created.IsEarly,
	)

	if s.hub != nil {
		s.hub.PublishToMany(
			[]string{sse.TopicPunches, sse.PersonTopic(created.PersonID)},
			sse.Event{Event: "punch.committed", Data: decision},
		)
	}

	return decision, nil
}

// decide runs resolver, workday filter, classifier and evaluator. On error the
// returned decision carries whatever was already derived.
func (s *DecisionServiceImpl) decide(ctx context.Context, mode attendance.Mode, req attendance.PunchRequest) (attendance.Decision, punchContext, error) {
	decision := attendance.Decision{Mode: mode, PersonID: req.PersonID}
	var pc punchContext

	if err := req.Validate(); err != nil {
		return decision, pc, err
	}

	if req.PersonID == nil {
		return decision, pc, attendance.ErrUnidentified
	}
	if req.Confidence < s.settings.MinConfidence {
		slog.DebugContext(ctx, "punch below confidence threshold",
			"person_id", *req.PersonID,
			"confidence", req.Confidence,
			"min_confidence", s.settings.MinConfidence,
		)
		return decision, pc, fmt.Errorf("%w: confidence %.2f below %.2f",
			attendance.ErrUnidentified, req.Confidence, s.settings.MinConfidence)
	}

	person, err := s.catalog.Person(ctx, *req.PersonID)
	if err != nil {
		if errors.Is(err, rule.ErrPersonNotFound) {
			return decision, pc, fmt.Errorf("%w: person %d is unknown", attendance.ErrUnidentified, *req.PersonID)
		}
		return decision, pc, storageError(err)
	}
	pc.person = person

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, rule.ErrInvalidTimeOfDay) || errors.Is(err, rule.ErrInvalidWorkDays) {
			slog.ErrorContext(ctx, "attendance rule catalog is malformed", "error", err)
			return decision, pc, fmt.Errorf("%w: %w", attendance.ErrConfiguration, err)
		}
		return decision, pc, storageError(err)
	}

	r, err := ResolveRule(snap, person)
	if err == nil && !r.HasValidWindow() {
		err = fmt.Errorf("%w: rule %d (%s-%s)", rule.ErrInvalidWindow, r.ID, r.WorkStart, r.WorkEnd)
	}
	if err != nil {
		slog.ErrorContext(ctx, "attendance rule could not be resolved",
			"person_id", person.ID,
			"error", err,
		)
		return decision, pc, fmt.Errorf("%w: %w", attendance.ErrConfiguration, err)
	}
	pc.rule = r

	ruleID := r.ID
	decision.RuleID = &ruleID
	decision.RuleName = r.Name
	decision.IsOpenMode = r.IsOpenMode

	pc.local = req.CapturedAt.In(s.settings.Location)
	y, m, d := pc.local.Date()
	pc.date = time.Date(y, m, d, 0, 0, 0, 0, s.settings.Location)
	at := rule.TimeOfDayOf(pc.local)

	decision.Date = rule.DateKey(pc.date)
	decision.LocalTime = at.String()
	decision.IsWorkday = IsWorkday(r, pc.date, snap)
	decision.CheckType = ClassifyPunch(r, at)

	status, err := EvaluateStatus(r, decision.CheckType, at, decision.IsWorkday)
	if err != nil {
		slog.DebugContext(ctx, "check-in rejected as too early",
			"person_id", person.ID,
			"rule_id", r.ID,
			"local_time", decision.LocalTime,
		)
		return decision, pc, err
	}
	pc.status = status

	decision.IsLate = status.IsLate
	decision.MinutesLate = status.MinutesLate
	decision.IsEarly = status.IsEarly
	decision.MinutesEarly = status.MinutesEarly

	return decision, pc, nil
}

// HasRecord implements attendance.DecisionService.
func (s *DecisionServiceImpl) HasRecord(ctx context.Context, query attendance.HasRecordQuery) (attendance.HasRecordResponse, error) {
	if err := query.Validate(); err != nil {
		return attendance.HasRecordResponse{}, err
	}

	date, err := time.ParseInLocation("2006-01-02", query.Date, s.settings.Location)
	if err != nil {
		return attendance.HasRecordResponse{}, validator.ValidationErrors{
			{Field: "date", Message: "date must be in YYYY-MM-DD format"},
		}
	}
	checkType := attendance.CheckType(query.CheckType)

	exists, err := s.RecordRepository.Exists(ctx, query.PersonID, date, checkType)
	if err != nil {
		return attendance.HasRecordResponse{}, storageError(err)
	}

	return attendance.HasRecordResponse{
		PersonID:  query.PersonID,
		Date:      query.Date,
		CheckType: checkType,
		Exists:    exists,
	}, nil
}

// GetRecord implements attendance.DecisionService.
func (s *DecisionServiceImpl) GetRecord(ctx context.Context, id string) (attendance.RecordResponse, error) {
	if !validator.IsValidUUID(id) {
		return attendance.RecordResponse{}, attendance.ErrRecordNotFound
	}

	record, err := s.RecordRepository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, attendance.ErrRecordNotFound) {
			return attendance.RecordResponse{}, err
		}
		return attendance.RecordResponse{}, storageError(err)
	}

	return s.toRecordResponse(record), nil
}

func (s *DecisionServiceImpl) toRecordResponse(r attendance.Record) attendance.RecordResponse {
	return attendance.RecordResponse{
		ID:           r.ID,
		PersonID:     r.PersonID,
		PunchedAt:    r.PunchedAt.In(s.settings.Location).Format(time.RFC3339),
		Date:         rule.DateKey(r.PunchDate),
		CheckType:    r.CheckType,
		IsLate:       r.IsLate,
		IsEarly:      r.IsEarly,
		MinutesLate:  r.MinutesLate,
		MinutesEarly: r.MinutesEarly,
		RuleID:       r.RuleID,
		Confidence:   r.Confidence,
		EvidenceRef:  r.EvidenceRef,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func storageError(err error) error {
	if errors.Is(err, attendance.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", attendance.ErrStorageUnavailable, err)
}

// outcomeOf labels a decision result for metrics.
func outcomeOf(err error) string {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return "accepted"
	case errors.As(err, &validationErrs):
		return "invalid"
	case errors.Is(err, attendance.ErrUnidentified):
		return "unidentified"
	case errors.Is(err, attendance.ErrTooEarly):
		return "too_early"
	case errors.Is(err, attendance.ErrDuplicatePunch):
		return "duplicate"
	case errors.Is(err, attendance.ErrConfiguration):
		return "configuration_error"
	default:
		return "storage_unavailable"
	}
}
