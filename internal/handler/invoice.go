package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/coldrent/rental-engine/internal/domain"
	"github.com/coldrent/rental-engine/internal/service"
	"github.com/coldrent/rental-engine/pkg/response"
)

type InvoiceHandler struct {
	service   *service.InvoiceService
	validator *validator.Validate
}

func NewInvoiceHandler(service *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		service:   service,
		validator: validator.New(),
	}
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid request", err)
		return
	}

	invoice, err := h.service.Create(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, invoice)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceId")
	if !ok {
		return
	}

	invoice, err := h.service.GetByID(r.Context(), invoiceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, invoice)
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseInvoiceFilter(r)
	if err != nil {
		response.BadRequest(w, "invalid filter", err)
		return
	}

	invoices, err := h.service.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, invoices)
}

func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceId")
	if !ok {
		return
	}

	var request domain.RecordInvoicePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid request", err)
		return
	}

	invoice, err := h.service.RecordPayment(r.Context(), invoiceID, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, invoice)
}

func (h *InvoiceHandler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceId")
	if !ok {
		return
	}

	invoice, err := h.service.MarkOverdue(r.Context(), invoiceID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, invoice)
}

func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceId")
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), invoiceID); err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, map[string]string{"status": domain.InvoiceStatusCancelled})
}

func (h *InvoiceHandler) CreateCorrection(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceId")
	if !ok {
		return
	}

	var request domain.CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid request", err)
		return
	}

	correction, err := h.service.CreateCorrection(r.Context(), invoiceID, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, correction)
}

func parseInvoiceFilter(r *http.Request) (domain.InvoiceFilter, error) {
	var filter domain.InvoiceFilter
	q := r.URL.Query()

	if v := q.Get("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, err
		}
		filter.ClientID = &id
	}
	if v := q.Get("rental_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, err
		}
		filter.RentalID = &id
	}
	filter.Status = q.Get("status")

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &filter.Year},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return filter, err
			}
			*p.dst = n
		}
	}

	return filter, nil
}
