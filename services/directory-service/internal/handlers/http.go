package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lexconnect/lexconnect/libs/httpx"
	"github.com/lexconnect/lexconnect/services/directory-service/internal/storage"
)

type Handler struct {
	store  storage.Store
	logger *slog.Logger
}

func New(store storage.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/lawyers/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/lawyers/{id}", h.Put).Methods(http.MethodPut)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "lawyer not found")
		return
	}
	if err != nil {
		h.logger.Error("lawyer lookup failed", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

type putLawyerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
	Active         *bool  `json:"active"`
}

// Put creates or replaces a directory entry. Only administrators may write.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Role")), "admin") {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "only administrators may edit the directory")
		return
	}
	var req putLawyerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_error", "invalid name: is required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	l, err := h.store.Upsert(r.Context(), storage.Lawyer{
		ID:             mux.Vars(r)["id"],
		Name:           req.Name,
		Email:          strings.TrimSpace(req.Email),
		Specialization: strings.TrimSpace(req.Specialization),
		Active:         active,
	})
	if err != nil {
		h.logger.Error("lawyer upsert failed", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}
