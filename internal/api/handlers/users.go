package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"glucogate/internal/core"
	"glucogate/internal/types"
)

// UserRepo defines the data access methods required by UserHandler.
type UserRepo interface {
	Create(ctx context.Context, u *types.User) error
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,max=200"`
}

// UserHandler serves /api/users.
type UserHandler struct {
	repo      UserRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(repo UserRepo, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{repo: repo, validator: v, logger: l}
}

// Routes returns the group router. Paths are relative to the mount prefix.
func (h *UserHandler) Routes(b *core.ErrorBoundary) http.Handler {
	r := chi.NewRouter()
	r.Post("/", b.Handle(h.Create))
	r.Get("/{id}", b.Handle(h.Get))
	return r
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) error {
	var req CreateUserRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return err
	}

	u := &types.User{Email: req.Email, Name: req.Name}
	if err := h.repo.Create(r.Context(), u); err != nil {
		return err
	}

	h.logger.InfoContext(r.Context(), "user created",
		"user_id", u.ID,
		"request_id", types.GetRequestID(r.Context()),
	)
	respond(w, r, http.StatusCreated, u)
	return nil
}

// Get handles GET /api/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	respond(w, r, http.StatusOK, u)
	return nil
}
