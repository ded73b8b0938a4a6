package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"glucogate/internal/core"
	"glucogate/internal/db"
	"glucogate/internal/types"
)

// RecordRepo defines the data access methods required by RecordHandler.
type RecordRepo interface {
	Create(ctx context.Context, rec *types.HealthRecord) error
	GetByID(ctx context.Context, kind types.RecordKind, id string) (*types.HealthRecord, error)
	List(ctx context.Context, f types.RecordFilter) ([]*types.HealthRecord, error)
	Delete(ctx context.Context, kind types.RecordKind, id string) error
}

// KindSpec describes one record kind: its unit and the plausible value range.
// Values outside [Min, Max] are well-formed but rejected with 422.
type KindSpec struct {
	Kind  types.RecordKind
	Label string
	Unit  string
	Min   float64
	Max   float64
}

// Record kinds served by the gateway.
var (
	GlucoseSpec  = KindSpec{Kind: types.RecordGlucose, Label: "Glucose", Unit: "mg/dL", Min: 20, Max: 600}
	ActivitySpec = KindSpec{Kind: types.RecordActivity, Label: "Activity", Unit: "min", Min: 1, Max: 1440}
	InsulinSpec  = KindSpec{Kind: types.RecordInsulin, Label: "Insulin", Unit: "units", Min: 0.05, Max: 100}
	FoodSpec     = KindSpec{Kind: types.RecordFood, Label: "Food", Unit: "g", Min: 0, Max: 1000}
)

// CreateRecordRequest is the body of POST on a record group.
type CreateRecordRequest struct {
	UserID     string         `json:"userId" validate:"required,uuid"`
	Value      *float64       `json:"value" validate:"required"`
	Unit       string         `json:"unit" validate:"omitempty,max=16"`
	RecordedAt *time.Time     `json:"recordedAt" validate:"omitempty,notfuture"`
	Notes      string         `json:"notes" validate:"max=1000"`
	Details    map[string]any `json:"details"`
}

// RecordHandler serves one record kind, e.g. /api/glucose.
type RecordHandler struct {
	spec      KindSpec
	repo      RecordRepo
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecordHandler creates a RecordHandler for spec.
func NewRecordHandler(spec KindSpec, repo RecordRepo, v *core.Validator, l *slog.Logger) *RecordHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RecordHandler{
		spec:      spec,
		repo:      repo,
		validator: v,
		logger:    l.With("kind", string(spec.Kind)),
		now:       time.Now,
	}
}

// Routes returns the group router. Paths are relative to the mount prefix.
func (h *RecordHandler) Routes(b *core.ErrorBoundary) http.Handler {
	r := chi.NewRouter()
	r.Get("/", b.Handle(h.List))
	r.Post("/", b.Handle(h.Create))
	r.Get("/{id}", b.Handle(h.Get))
	r.Delete("/{id}", b.Handle(h.Delete))
	return r
}

// List handles GET /. userId is required; limit, since and until are optional.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) error {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "userId query parameter is required", nil)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidID, "userId must be a valid UUID", err)
	}

	limit, err := queryInt(r, "limit", 1, db.MaxRecordLimit)
	if err != nil {
		return err
	}
	since, err := queryTime(r, "since")
	if err != nil {
		return err
	}
	until, err := queryTime(r, "until")
	if err != nil {
		return err
	}
	if !since.IsZero() && !until.IsZero() && !since.Before(until) {
		return types.NewAppError(types.ErrCodeValidationInvalidValue, "since must be before until", nil)
	}

	recs, err := h.repo.List(r.Context(), types.RecordFilter{
		UserID: userID,
		Kind:   h.spec.Kind,
		Since:  since,
		Until:  until,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	respond(w, r, http.StatusOK, recs)
	return nil
}

// Create handles POST /.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) error {
	var req CreateRecordRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return err
	}
	if err := h.checkSemantics(req); err != nil {
		return err
	}

	recordedAt := h.now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	rec := &types.HealthRecord{
		UserID:     req.UserID,
		Kind:       h.spec.Kind,
		Value:      *req.Value,
		Unit:       h.spec.Unit,
		RecordedAt: recordedAt,
		Notes:      req.Notes,
		Details:    req.Details,
	}
	if err := h.repo.Create(r.Context(), rec); err != nil {
		return err
	}

	h.logger.InfoContext(r.Context(), "record created",
		"record_id", rec.ID,
		"user_id", rec.UserID,
		"request_id", types.GetRequestID(r.Context()),
	)
	respond(w, r, http.StatusCreated, rec)
	return nil
}

// checkSemantics applies the kind rules to a syntactically valid request.
func (h *RecordHandler) checkSemantics(req CreateRecordRequest) error {
	if req.Unit != "" && req.Unit != h.spec.Unit {
		return types.NewStatusError(http.StatusUnprocessableEntity,
			fmt.Sprintf("%s unit must be %s", h.spec.Label, h.spec.Unit), nil)
	}
	if v := *req.Value; v < h.spec.Min || v > h.spec.Max {
		return types.NewStatusError(http.StatusUnprocessableEntity,
			fmt.Sprintf("%s value out of range (%g-%g %s)", h.spec.Label, h.spec.Min, h.spec.Max, h.spec.Unit), nil)
	}
	return nil
}

// Get handles GET /{id}.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	rec, err := h.repo.GetByID(r.Context(), h.spec.Kind, id)
	if err != nil {
		return err
	}
	respond(w, r, http.StatusOK, rec)
	return nil
}

// Delete handles DELETE /{id}.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.repo.Delete(r.Context(), h.spec.Kind, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
