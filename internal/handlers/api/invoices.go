package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/invoisku/api/internal/compliance"
	"github.com/invoisku/api/internal/services/invoice"
)

// InvoiceHandler serves the invoice and validation endpoints.
type InvoiceHandler struct {
	svc     *invoice.Service
	baseURL string
	logger  *slog.Logger
}

// NewInvoiceHandler creates the handler. baseURL is used to build the
// verification link embedded in invoice QR codes.
func NewInvoiceHandler(svc *invoice.Service, baseURL string, logger *slog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceHandler{svc: svc, baseURL: baseURL, logger: logger}
}

// RegisterRoutes registers invoice routes on the given mux.
func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/invoices", h.Create)
	mux.HandleFunc("GET /api/v1/invoices", h.List)
	mux.HandleFunc("GET /api/v1/invoices/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/invoices/{id}", h.Update)
	mux.HandleFunc("POST /api/v1/invoices/{id}/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/invoices/{id}/findings", h.ListFindings)
	mux.HandleFunc("GET /api/v1/invoices/{id}/qr", h.QRCode)
	mux.HandleFunc("POST /api/v1/findings/{id}/resolve", h.ResolveFinding)
}

// invoiceRequest is the write payload for invoices. Dates use the
// YYYY-MM-DD form the MyInvois portal uses.
type invoiceRequest struct {
	OrganizationID      uuid.UUID            `json:"organization_id"`
	InvoiceNumber       string               `json:"invoice_number"`
	DocumentType        string               `json:"document_type"`
	IssueDate           string               `json:"issue_date"`
	DueDate             string               `json:"due_date"`
	CurrencyCode        string               `json:"currency_code"`
	ExchangeRate        decimal.Decimal      `json:"exchange_rate"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	SSTAmount           decimal.Decimal      `json:"sst_amount"`
	TotalDiscount       decimal.Decimal      `json:"total_discount"`
	GrandTotal          decimal.Decimal      `json:"grand_total"`
	IsConsolidated      bool                 `json:"is_consolidated"`
	ConsolidationPeriod string               `json:"consolidation_period"`
	ReferenceInvoiceID  *uuid.UUID           `json:"reference_invoice_id"`
	NoteReason          string               `json:"note_reason"`
	BuyerName           string               `json:"buyer_name"`
	BuyerTIN            string               `json:"buyer_tin"`
	BuyerIsIndividual   bool                 `json:"buyer_is_individual"`
	BuyerAddress        string               `json:"buyer_address"`
	Lines               []invoice.LineParams `json:"lines"`
}

func (req *invoiceRequest) toParams() (invoice.CreateParams, error) {
	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		return invoice.CreateParams{}, fmt.Errorf("issue_date must be YYYY-MM-DD")
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return invoice.CreateParams{}, fmt.Errorf("due_date must be YYYY-MM-DD")
		}
		dueDate = &d
	}

	docType := req.DocumentType
	if docType == "" {
		docType = string(compliance.DocTypeInvoice)
	}

	return invoice.CreateParams{
		OrganizationID:      req.OrganizationID,
		InvoiceNumber:       req.InvoiceNumber,
		DocumentType:        compliance.DocumentType(docType),
		IssueDate:           issueDate,
		DueDate:             dueDate,
		CurrencyCode:        req.CurrencyCode,
		ExchangeRate:        req.ExchangeRate,
		Subtotal:            req.Subtotal,
		SSTAmount:           req.SSTAmount,
		TotalDiscount:       req.TotalDiscount,
		GrandTotal:          req.GrandTotal,
		IsConsolidated:      req.IsConsolidated,
		ConsolidationPeriod: req.ConsolidationPeriod,
		ReferenceInvoiceID:  req.ReferenceInvoiceID,
		NoteReason:          req.NoteReason,
		BuyerName:           req.BuyerName,
		BuyerTIN:            req.BuyerTIN,
		BuyerIsIndividual:   req.BuyerIsIndividual,
		BuyerAddress:        req.BuyerAddress,
		Lines:               req.Lines,
	}, nil
}

// invoiceResponse pairs the stored invoice with its validation report.
type invoiceResponse struct {
	Invoice invoice.Invoice    `json:"invoice"`
	Report  *compliance.Report `json:"report"`
}

// Create handles POST /api/v1/invoices. The invoice is validated on the
// way in; the response carries the report so clients can surface
// findings immediately.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrganizationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, report, err := h.svc.Create(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrOrganizationNotFound):
			writeError(w, http.StatusNotFound, "organization not found")
		case errors.Is(err, invoice.ErrDuplicateNumber):
			writeError(w, http.StatusConflict, "invoice number already exists")
		default:
			h.logger.Error("creating invoice", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, invoiceResponse{Invoice: inv, Report: report})
}

// List handles GET /api/v1/invoices?organization_id=...
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.URL.Query().Get("organization_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organization_id query parameter is required")
		return
	}
	limit, offset := parsePagination(r)

	invoices, err := h.svc.List(r.Context(), orgID, limit, offset)
	if err != nil {
		h.logger.Error("listing invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if invoices == nil {
		invoices = []invoice.Invoice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": invoices})
}

// Get handles GET /api/v1/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, lines, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		h.logger.Error("getting invoice", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv, "lines": lines})
}

// Update handles PATCH /api/v1/invoices/{id}. The full document is
// replaced and revalidated.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, report, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			writeError(w, http.StatusNotFound, "invoice not found")
		case errors.Is(err, invoice.ErrOrganizationNotFound):
			writeError(w, http.StatusNotFound, "organization not found")
		case errors.Is(err, invoice.ErrDuplicateNumber):
			writeError(w, http.StatusConflict, "invoice number already exists")
		default:
			h.logger.Error("updating invoice", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse{Invoice: inv, Report: report})
}

// Validate handles POST /api/v1/invoices/{id}/validate.
func (h *InvoiceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	report, err := h.svc.Validate(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		h.logger.Error("validating invoice", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListFindings handles GET /api/v1/invoices/{id}/findings.
func (h *InvoiceHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	findings, err := h.svc.ListFindings(r.Context(), id)
	if err != nil {
		h.logger.Error("listing findings", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if findings == nil {
		findings = []invoice.FindingRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": findings})
}

// ResolveFinding handles POST /api/v1/findings/{id}/resolve.
func (h *InvoiceHandler) ResolveFinding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid finding id")
		return
	}

	if err := h.svc.ResolveFinding(r.Context(), id); err != nil {
		if errors.Is(err, invoice.ErrFindingNotFound) {
			writeError(w, http.StatusNotFound, "finding not found")
			return
		}
		h.logger.Error("resolving finding", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QRCode handles GET /api/v1/invoices/{id}/qr. It returns a PNG QR code
// pointing at the invoice's verification URL, the way validated
// e-Invoices carry a portal link.
func (h *InvoiceHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	// Confirm the invoice exists before minting a link for it.
	if _, _, err := h.svc.Get(r.Context(), id); err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		h.logger.Error("getting invoice for qr", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	verifyURL := fmt.Sprintf("%s/verify/%s", h.baseURL, id)
	png, err := qrcode.Encode(verifyURL, qrcode.Medium, 256)
	if err != nil {
		h.logger.Error("encoding qr code", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
