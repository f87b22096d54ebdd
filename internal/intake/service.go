package intake

import (
	"context"
	"errors"

	"github.com/labforge/intake-api/internal/resilience"
)

// Breaker operation names used by the service. The breaker registry creates
// one breaker per name on first use.
const (
	opCreate = "db.specimens.create"
	opGet    = "db.specimens.get"
	opList   = "db.specimens.list"
)

// Service routes every store call through the breaker registry so a failing
// database cannot keep consuming request-handler resources. Lookups go
// read-through the optional Redis cache.
type Service struct {
	Store    *Store
	Cache    *Cache
	Breakers *resilience.Registry
}

// Create registers a new specimen.
func (s *Service) Create(ctx context.Context, input SpecimenInput) (Specimen, error) {
	if s == nil || s.Store == nil {
		return Specimen{}, errors.New("intake: service not configured")
	}
	var created Specimen
	err := s.Breakers.Call(ctx, opCreate, func(ctx context.Context) error {
		var opErr error
		created, opErr = s.Store.Create(ctx, input)
		return opErr
	}, nil)
	if err != nil {
		return Specimen{}, err
	}
	s.Cache.Set(ctx, created)
	return created, nil
}

// Get fetches a specimen by accession number, serving from cache when
// possible. When the breaker is open the cache acts as the fallback.
func (s *Service) Get(ctx context.Context, accession string) (Specimen, error) {
	if s == nil || s.Store == nil {
		return Specimen{}, errors.New("intake: service not configured")
	}
	if sp, ok := s.Cache.Get(ctx, accession); ok {
		return sp, nil
	}
	var found Specimen
	err := s.Breakers.Call(ctx, opGet, func(ctx context.Context) error {
		var opErr error
		found, opErr = s.Store.GetByAccession(ctx, accession)
		return opErr
	}, func(ctx context.Context) error {
		if sp, ok := s.Cache.Get(ctx, accession); ok {
			found = sp
			return nil
		}
		return resilience.ErrOpenCircuit
	})
	if err != nil {
		return Specimen{}, err
	}
	s.Cache.Set(ctx, found)
	return found, nil
}

// List returns a page of specimens with the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Specimen, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("intake: service not configured")
	}
	var (
		specimens []Specimen
		total     int64
	)
	err := s.Breakers.Call(ctx, opList, func(ctx context.Context) error {
		var opErr error
		specimens, total, opErr = s.Store.List(ctx, page, perPage)
		return opErr
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	return specimens, total, nil
}
