package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labforge/intake-api/internal/common"
)

// ErrNotFound marks a specimen lookup that matched no row.
var ErrNotFound = errors.New("intake: specimen not found")

// Specimen is one received laboratory specimen record.
type Specimen struct {
	Accession    string    `json:"accession"`
	CaseNumber   string    `json:"case_number"`
	SpecimenType string    `json:"specimen_type"`
	CollectedBy  string    `json:"collected_by,omitempty"`
	CollectedAt  time.Time `json:"collected_at"`
	ReceivedAt   time.Time `json:"received_at"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
}

// SpecimenInput captures the payload for registering a specimen.
type SpecimenInput struct {
	CaseNumber   string
	SpecimenType string
	CollectedBy  string
	CollectedAt  time.Time
	Notes        string
}

// Store persists specimen records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a specimen store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies database connectivity within the given timeout. It doubles
// as the Postgres dependency probe.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("intake: database not configured")
	}
	return s.pool.Ping(ctx)
}

// Create inserts a new specimen and returns the stored record.
func (s *Store) Create(ctx context.Context, input SpecimenInput) (Specimen, error) {
	accession := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO specimens (accession, case_number, specimen_type, collected_by, collected_at, received_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, now(), 'received', $6)
		RETURNING accession, case_number, specimen_type, collected_by, collected_at, received_at, status, notes`,
		accession, input.CaseNumber, input.SpecimenType, input.CollectedBy, input.CollectedAt, input.Notes,
	)
	return scanSpecimen(row)
}

// GetByAccession fetches one specimen by its accession number.
func (s *Store) GetByAccession(ctx context.Context, accession string) (Specimen, error) {
	if _, err := uuid.Parse(accession); err != nil {
		return Specimen{}, common.NewAppError("NOT_FOUND", "specimen not found", 404, ErrNotFound)
	}
	row := s.pool.QueryRow(ctx, `
		SELECT accession, case_number, specimen_type, collected_by, collected_at, received_at, status, notes
		FROM specimens WHERE accession = $1`,
		accession,
	)
	sp, err := scanSpecimen(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Specimen{}, common.NewAppError("NOT_FOUND", "specimen not found", 404, ErrNotFound)
	}
	return sp, err
}

// List returns a page of specimens ordered by receipt time, newest first,
// with the total row count.
func (s *Store) List(ctx context.Context, page, perPage int) ([]Specimen, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	rows, err := s.pool.Query(ctx, `
		SELECT accession, case_number, specimen_type, collected_by, collected_at, received_at, status, notes
		FROM specimens ORDER BY received_at DESC LIMIT $1 OFFSET $2`,
		perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	specimens := make([]Specimen, 0, perPage)
	for rows.Next() {
		sp, err := scanSpecimen(rows)
		if err != nil {
			return nil, 0, err
		}
		specimens = append(specimens, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM specimens`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return specimens, total, nil
}

func scanSpecimen(row pgx.Row) (Specimen, error) {
	var sp Specimen
	err := row.Scan(
		&sp.Accession,
		&sp.CaseNumber,
		&sp.SpecimenType,
		&sp.CollectedBy,
		&sp.CollectedAt,
		&sp.ReceivedAt,
		&sp.Status,
		&sp.Notes,
	)
	return sp, err
}
