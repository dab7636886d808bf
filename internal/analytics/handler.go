package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// Handler serves the dashboard summary.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers dashboard routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", h.now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	summary, err := h.service.Summary(ctx, companyID, asOf)
	if err != nil {
		h.logger.Error("dashboard summary", slog.String("company_id", companyID.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Dashboard Unavailable", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
