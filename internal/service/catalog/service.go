package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared catalog load.
const loadTimeout = 10 * time.Second

type Options struct {
	// TTL bounds snapshot staleness. Zero or less disables caching and every
	// call reads the repository.
	TTL time.Duration
	// PersonCacheSize caps the person cache. Persons are cached only when TTL
	// is positive.
	PersonCacheSize int
}

type CatalogServiceImpl struct {
	rule.CatalogRepository
	rule.PersonRepository
	ttl     time.Duration
	metrics *metrics.Collectors
	persons *expirable.LRU[int64, rule.Person]
	group   singleflight.Group
	now     func() time.Time

	mu         sync.RWMutex
	snap       rule.Snapshot
	expires    time.Time
	loaded     bool
	generation uint64
}

func NewCatalogService(
	catalogRepository rule.CatalogRepository,
	personRepository rule.PersonRepository,
	opts Options,
	collectors *metrics.Collectors,
) rule.CatalogService {
	s := &CatalogServiceImpl{
		CatalogRepository: catalogRepository,
		PersonRepository:  personRepository,
		ttl:               opts.TTL,
		metrics:           collectors,
		now:               time.Now,
	}
	if opts.TTL > 0 && opts.PersonCacheSize > 0 {
		s.persons = expirable.NewLRU[int64, rule.Person](opts.PersonCacheSize, nil, opts.TTL)
	}
	return s
}

// Snapshot implements rule.CatalogService. Concurrent misses share one load.
func (s *CatalogServiceImpl) Snapshot(ctx context.Context) (rule.Snapshot, error) {
	if s.ttl <= 0 {
		return s.load(ctx)
	}

	s.mu.RLock()
	if s.loaded && s.now().Before(s.expires) {
		snap := s.snap
		s.mu.RUnlock()
		return snap, nil
	}
	gen := s.generation
	s.mu.RUnlock()

	// The shared load outlives any single caller so one cancelled request
	// can't fail the others waiting on it.
	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		snap, err := s.load(loadCtx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		// an Invalidate during the load makes this result stale
		if s.generation == gen {
			s.snap = snap
			s.expires = s.now().Add(s.ttl)
			s.loaded = true
		}
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return rule.Snapshot{}, res.Err
		}
		return res.Val.(rule.Snapshot), nil
	case <-ctx.Done():
		return rule.Snapshot{}, ctx.Err()
	}
}

func (s *CatalogServiceImpl) load(ctx context.Context) (rule.Snapshot, error) {
	snap, err := s.CatalogRepository.LoadSnapshot(ctx)
	s.metrics.ObserveCatalogLoad(err)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load rule catalog", "error", err)
		return rule.Snapshot{}, err
	}
	return snap, nil
}

// Person implements rule.CatalogService.
func (s *CatalogServiceImpl) Person(ctx context.Context, id int64) (rule.Person, error) {
	if s.persons != nil {
		if p, ok := s.persons.Get(id); ok {
			return p, nil
		}
	}

	p, err := s.PersonRepository.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, rule.ErrPersonNotFound) {
			slog.ErrorContext(ctx, "failed to load person", "person_id", id, "error", err)
		}
		return rule.Person{}, err
	}

	if s.persons != nil {
		s.persons.Add(id, p)
	}
	return p, nil
}

// Invalidate implements rule.CatalogService.
func (s *CatalogServiceImpl) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.loaded = false
	s.snap = rule.Snapshot{}
	s.mu.Unlock()

	if s.persons != nil {
		s.persons.Purge()
	}
	slog.Info("rule catalog cache invalidated")
}

// Conflicts implements rule.CatalogService. It always reads the repository.
func (s *CatalogServiceImpl) Conflicts(ctx context.Context) (rule.ConflictReport, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return rule.ConflictReport{}, err
	}

	report := DetectConflicts(snap, s.now())
	s.metrics.SetRuleConflicts(report.Errors, report.Warnings)
	return report, nil
}
