package accounts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{accountID}", h.get)
	r.Post("/{accountID}/deactivate", h.deactivate)
	r.Post("/{accountID}/activate", h.activate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	accounts, err := h.service.List(r.Context(), companyID, ListFilter{
		Type:       AccountType(q.Get("type")),
		ActiveOnly: q.Get("active") == "true",
	})
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.CompanyID = companyID
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "get account", h.service.Get)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "deactivate account", h.service.Deactivate)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "activate account", h.service.Activate)
}

func (h *Handler) withAccount(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, companyID, id uuid.UUID) (Account, error)) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.URLParamUUID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := fn(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
