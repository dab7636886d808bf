package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

// Handler serves financial statements as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers report routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/profit-and-loss", h.profitAndLoss)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/cash-flow", h.cashFlow)
	r.Get("/trial-balance", h.trialBalance)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), companyID, from, to, r.URL.Query().Get("granularity"))
	if err != nil {
		h.fail(w, "profit and loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, err := h.asOfParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), companyID, asOf)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.CashFlow(r.Context(), companyID, from, to)
	if err != nil {
		h.fail(w, "cash flow", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, err := h.asOfParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of":         asOf.Format(dateLayout),
		"trial_balance": report,
		"balanced":      report.Balanced(),
	})
}

// rangeParams defaults to the calendar year to date.
func (h *Handler) rangeParams(r *http.Request) (uuid.UUID, time.Time, time.Time, error) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, err
	}
	to, err := httpx.QueryDate(r, "to", day(h.now()))
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, err
	}
	from, err := httpx.QueryDate(r, "from", time.Date(to.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, err
	}
	return companyID, from, to, nil
}

func (h *Handler) asOfParams(r *http.Request) (uuid.UUID, time.Time, error) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	asOf, err := httpx.QueryDate(r, "as_of", day(h.now()))
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return companyID, asOf, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
