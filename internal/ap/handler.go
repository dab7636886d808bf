package ap

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

// Handler exposes AP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AP routes below a {companyID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Get("/", h.listBills)
		r.Post("/", h.createBill)
		r.Get("/{billID}", h.getBill)
		r.Post("/{billID}/post", h.postBill)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.createPayment)
		r.Get("/{paymentID}", h.getPayment)
		r.Post("/{paymentID}/post", h.postPayment)
	})
	r.Get("/aging", h.aging)
}

type billRequest struct {
	Number      string          `json:"number"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	DocDate     string          `json:"doc_date"`
	DueDate     string          `json:"due_date"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type paymentRequest struct {
	Number   string          `json:"number"`
	VendorID uuid.UUID       `json:"vendor_id"`
	BillID   *uuid.UUID      `json:"bill_id"`
	DocDate  string          `json:"doc_date"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req billRequest
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
	bill, err := h.service.CreateBill(r.Context(), CreateBillInput{
		CompanyID:   companyID,
		Number:      req.Number,
		VendorID:    req.VendorID,
		DocDate:     docDate,
		DueDate:     dueDate,
		Currency:    req.Currency,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		h.fail(w, "create bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.URLParamUUID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	docDate, err := parseDate("doc_date", req.DocDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreatePayment(r.Context(), CreatePaymentInput{
		CompanyID: companyID,
		Number:    req.Number,
		VendorID:  req.VendorID,
		BillID:    req.BillID,
		DocDate:   docDate,
		Amount:    req.Amount,
		Method:    req.Method,
	})
	if err != nil {
		h.fail(w, "create payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "billID")
	if !ok {
		return
	}
	result, err := h.service.PostBill(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "post bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "paymentID")
	if !ok {
		return
	}
	result, err := h.service.PostPayment(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "post payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "billID")
	if !ok {
		return
	}
	bill, err := h.service.GetBill(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.ids(w, r, "paymentID")
	if !ok {
		return
	}
	p, err := h.service.GetPayment(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := h.listParams(w, r)
	if !ok {
		return
	}
	bills, err := h.service.ListBills(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	if bills == nil {
		bills = []Bill{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := h.listParams(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
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
		h.fail(w, "ap aging", err)
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
	filter := ListFilter{Status: BillStatus(q.Get("status"))}
	if raw := q.Get("vendor_id"); raw != "" {
		if filter.VendorID, err = uuid.Parse(raw); err != nil {
			httpx.RespondError(w, shared.Invalid("vendor_id", "must be a UUID"))
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
