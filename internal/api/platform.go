package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/identity"
	"github.com/ashureev/finplan/internal/platform"
	"github.com/go-chi/chi/v5"
)

// PlatformHandler serves the platform directory and platform requests.
type PlatformHandler struct {
	svc         *platform.Service
	maxBodySize int64
}

// NewPlatformHandler creates a platform handler.
func NewPlatformHandler(svc *platform.Service, maxBodySize int64) *PlatformHandler {
	return &PlatformHandler{svc: svc, maxBodySize: maxBodySize}
}

// RegisterRoutes registers the platform routes.
func (h *PlatformHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api/platforms", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/requests/popular", h.Popular)
		if limit != nil {
			r.With(limit).Post("/requests", h.Request)
		} else {
			r.Post("/requests", h.Request)
		}
	})
}

// List returns the static directory.
func (h *PlatformHandler) List(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, platform.List())
}

type platformRequestBody struct {
	Category domain.PlatformCategory `json:"category"`
	Name     string                  `json:"name"`
}

// Request records a request for an unlisted platform.
func (h *PlatformHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body platformRequestBody
	if !decodeJSON(w, r, h.maxBodySize, &body) {
		return
	}

	req, err := h.svc.Request(r.Context(), identity.SessionIDFromContext(r.Context()), body.Category, body.Name)
	switch {
	case errors.Is(err, platform.ErrUnknownCategory):
		Error(w, http.StatusBadRequest, "unknown_category")
		return
	case errors.Is(err, platform.ErrEmptyName), errors.Is(err, platform.ErrNameTooLong):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Failed to store platform request", "error", err)
		Error(w, http.StatusInternalServerError, "failed to store request")
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"request": req,
		"message": "Thanks! We've noted your request for " + req.Name + ".",
	})
}

// Popular lists the most requested unlisted platforms of a category.
func (h *PlatformHandler) Popular(w http.ResponseWriter, r *http.Request) {
	category := domain.PlatformCategory(r.URL.Query().Get("category"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	demand, err := h.svc.Popular(r.Context(), category, limit)
	if errors.Is(err, platform.ErrUnknownCategory) {
		Error(w, http.StatusBadRequest, "unknown_category")
		return
	}
	if err != nil {
		slog.Error("Failed to load platform demand", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load requests")
		return
	}
	if demand == nil {
		demand = []domain.PlatformDemand{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"category": category, "requests": demand})
}
