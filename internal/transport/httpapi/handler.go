// Package httpapi is the caller-facing HTTP surface. Handlers stay thin:
// decode, delegate to a service, encode. All domain decisions, including
// uniqueness and the reset step order, live below this layer.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	credential "registra/internal/credential/service"
	identity "registra/internal/identity/service"
	"registra/internal/platform/middleware"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/requestcontext"
)

// HealthChecker reports reachability of one backing dependency.
type HealthChecker func(ctx context.Context) error

// Handler bundles the services behind the HTTP routes.
type Handler struct {
	records     *identity.Service
	credentials *credential.Service
	validator   middleware.TokenValidator
	logger      *slog.Logger
	health      map[string]HealthChecker
}

func NewHandler(records *identity.Service, credentials *credential.Service, validator middleware.TokenValidator, logger *slog.Logger, health map[string]HealthChecker) *Handler {
	return &Handler{
		records:     records,
		credentials: credentials,
		validator:   validator,
		logger:      logger,
		health:      health,
	}
}

// Routes builds the router. Reads are open; every mutating route sits behind
// the admin JWT middleware so audit events carry a real actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/", h.createUser)
			r.Patch("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
			r.Post("/{id}/password-reset", h.resetPassword)
			r.Post("/{id}/password-history/repair", h.repairHistory)
		})
	})

	return r
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.records.Create(r.Context(), identity.CreateInput{
		Email:      req.Email,
		NationalID: req.NationalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       req.Role,
		Login:      req.Login,
		Password:   req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(record))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.records.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(record))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(records))}
	for _, record := range records {
		resp.Users = append(resp.Users, toUserResponse(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.records.Update(r.Context(), userID, req.patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(record))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.records.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	outcome, err := h.credentials.Reset(r.Context(), userID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := resetPasswordResponse{
		Status:      "success",
		Actor:       outcome.Actor,
		CompletedAt: outcome.CompletedAt,
	}
	if outcome.Partial {
		// The credential is live; the caller learns bookkeeping is behind.
		resp.Status = "partial"
		resp.Detail = outcome.PartialReason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) repairHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.credentials.RepairHistory(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "unreachable"
			h.logger.WarnContext(r.Context(), "health check failed",
				slog.String("dependency", name),
				slog.String("request_id", requestcontext.RequestID(r.Context())),
				slog.String("error", err.Error()))
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, checks)
}

func pathUserID(r *http.Request) (id.UserID, error) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id")
	}
	return userID, nil
}
