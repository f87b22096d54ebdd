package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/labforge/intake-api/internal/common"
	"github.com/labforge/intake-api/internal/resilience"
)

// SpecimenService defines the operations the handlers require.
type SpecimenService interface {
	Create(ctx context.Context, input SpecimenInput) (Specimen, error)
	Get(ctx context.Context, accession string) (Specimen, error)
	List(ctx context.Context, page, perPage int) ([]Specimen, int64, error)
}

// Handler exposes REST endpoints for specimen intake.
type Handler struct {
	Svc      SpecimenService
	Validate *validator.Validate
}

type specimenRequest struct {
	CaseNumber   string    `json:"case_number" validate:"required,max=64"`
	SpecimenType string    `json:"specimen_type" validate:"required,oneof=blood buccal tissue bone swab other"`
	CollectedBy  string    `json:"collected_by" validate:"max=128"`
	CollectedAt  time.Time `json:"collected_at" validate:"required"`
	Notes        string    `json:"notes" validate:"max=2000"`
}

// Create handles POST /api/v1/specimens.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "intake service not configured", nil)
		return
	}
	var req specimenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid specimen payload", validationDetails(err))
			return
		}
	}
	created, err := h.Svc.Create(r.Context(), SpecimenInput{
		CaseNumber:   req.CaseNumber,
		SpecimenType: req.SpecimenType,
		CollectedBy:  req.CollectedBy,
		CollectedAt:  req.CollectedAt,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get handles GET /api/v1/specimens/{accession}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "intake service not configured", nil)
		return
	}
	sp, err := h.Svc.Get(r.Context(), chi.URLParam(r, "accession"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sp})
}

// List handles GET /api/v1/specimens.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "intake service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	specimens, total, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       specimens,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, resilience.ErrOpenCircuit) {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "storage temporarily unavailable", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
