package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

// Handler wires ledger journal endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.postManual)
	r.Get("/{journalID}", h.get)
}

type manualLine struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type manualRequest struct {
	Date        string       `json:"date"`
	Description string       `json:"description"`
	Lines       []manualLine `json:"lines"`
}

func (h *Handler) postManual(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req manualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("date", "must be YYYY-MM-DD"))
		return
	}
	input := PostingInput{
		CompanyID:    companyID,
		Date:         date,
		Description:  req.Description,
		SourceModule: SourceManual,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Description: l.Description})
	}
	entry, err := h.service.PostJournal(r.Context(), input)
	if errors.Is(err, shared.ErrImbalancedEntry) {
		// Hand-entered lines are user input, not a posting bug.
		err = shared.Invalid("lines", "%v", err)
	}
	if err != nil {
		h.fail(w, "post manual journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := JournalFilter{SourceModule: SourceModule(q.Get("source_module"))}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if q.Get(name) == "" {
			continue
		}
		d, err := httpx.QueryDate(r, name, time.Time{})
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		*dst = &d
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, err = strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("limit", "must be an integer"))
			return
		}
	}
	entries, err := h.service.ListJournals(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.URLParamUUID(r, "journalID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetJournal(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
