package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

// Handler exposes role mappings over JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers mapping routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{role}", h.assign)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list role mappings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Mapping{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": out})
}

type assignRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, shared.Invalid("role", "%v", err))
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Assign(r.Context(), companyID, role, req.AccountID)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("assign role mapping", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
