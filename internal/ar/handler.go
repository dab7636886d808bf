package ar

import (
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

// Handler exposes AR endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AR routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{invoiceID}", h.getInvoice)
		r.Post("/{invoiceID}/post", h.postInvoice)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.createReceipt)
		r.Get("/{receiptID}", h.getReceipt)
		r.Post("/{receiptID}/post", h.postReceipt)
	})
	r.Get("/aging", h.aging)
}

type invoiceRequest struct {
	Number      string          `json:"number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	DocDate     string          `json:"doc_date"`
	DueDate     string          `json:"due_date"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type receiptRequest struct {
	Number     string          `json:"number"`
	CustomerID uuid.UUID       `json:"customer_id"`
	InvoiceID  *uuid.UUID      `json:"invoice_id"`
	DocDate    string          `json:"doc_date"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	docDate, err := parseDate("doc_date", req.DocDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		CompanyID:   companyID,
		Number:      req.Number,
		CustomerID:  req.CustomerID,
		DocDate:     docDate,
		DueDate:     dueDate,
		Currency:    req.Currency,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	docDate, err := parseDate("doc_date", req.DocDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rc, err := h.service.CreateReceipt(r.Context(), CreateReceiptInput{
		CompanyID:  companyID,
		Number:     req.Number,
		CustomerID: req.CustomerID,
		InvoiceID:  req.InvoiceID,
		DocDate:    docDate,
		Amount:     req.Amount,
		Method:     req.Method,
	})
	if err != nil {
		h.fail(w, "create receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rc)
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "invoiceID")
	if !ok {
		return
	}
	result, err := h.service.PostInvoice(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "post invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "receiptID")
	if !ok {
		return
	}
	result, err := h.service.PostReceipt(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "post receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "receiptID")
	if !ok {
		return
	}
	rc, err := h.service.GetReceipt(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rc)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := h.listParams(w, r)
	if !ok {
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := h.listParams(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list receipts", err)
		return
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", time.Time{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bucket, err := h.service.CalculateAging(r.Context(), companyID, asOf)
	if err != nil {
		h.fail(w, "ar aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}

func (h *Handler) ids(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := httpx.URLParamUUID(r, param)
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}

func (h *Handler) listParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, ListFilter, bool) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, ListFilter{}, false
	}
	q := r.URL.Query()
	filter := ListFilter{Status: InvoiceStatus(q.Get("status"))}
	if raw := q.Get("customer_id"); raw != "" {
		if filter.CustomerID, err = uuid.Parse(raw); err != nil {
			httpx.RespondError(w, shared.Invalid("customer_id", "must be a UUID"))
			return uuid.Nil, ListFilter{}, false
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			httpx.RespondError(w, shared.Invalid("limit", "must be an integer"))
			return uuid.Nil, ListFilter{}, false
		}
	}
	return companyID, filter, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, shared.Invalid(field, "is required")
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, shared.Invalid(field, "must be YYYY-MM-DD")
	}
	return d, nil
}
