package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/coldrent/rental-engine/internal/domain"
	"github.com/coldrent/rental-engine/internal/service"
	"github.com/coldrent/rental-engine/pkg/response"
)

type RentalHandler struct {
	service   *service.RentalService
	validator *validator.Validate
}

func NewRentalHandler(service *service.RentalService) *RentalHandler {
	return &RentalHandler{
		service:   service,
		validator: validator.New(),
	}
}

func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid request", err)
		return
	}

	rental, payments, err := h.service.Create(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, domain.CreateRentalResponse{Rental: rental, Payments: payments})
}

func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}

	rental, err := h.service.GetByID(r.Context(), rentalID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, rental)
}

func (h *RentalHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}

	payments, err := h.service.GetPayments(r.Context(), rentalID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payments)
}

func (h *RentalHandler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	payment, err := h.service.SettlePayment(r.Context(), rentalID, paymentID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payment)
}

func (h *RentalHandler) Extend(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}

	var request domain.ExtendRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid request", err)
		return
	}

	rental, newPayments, err := h.service.Extend(r.Context(), rentalID, request.NewEndDate)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, domain.ExtendRentalResponse{Rental: rental, NewPayments: newPayments})
}

func (h *RentalHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}

	rental, err := h.service.Terminate(r.Context(), rentalID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, rental)
}

func (h *RentalHandler) Complete(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathUUID(w, r, "rentalId")
	if !ok {
		return
	}

	rental, err := h.service.Complete(r.Context(), rentalID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, rental)
}

func (h *RentalHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	equipmentID, ok := pathUUID(w, r, "equipmentId")
	if !ok {
		return
	}

	occupancy, err := h.service.IsEquipmentRented(r.Context(), equipmentID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, occupancy)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
