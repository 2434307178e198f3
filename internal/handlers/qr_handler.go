package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/echowallet/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR creates a payment request QR code
// @Summary Generate payment QR code
// @Description Generate a single-use QR code requesting a payment to the caller
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64} true "QR generation request"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, image, err := h.service.GeneratePaymentRequest(r.Context(), userID, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"qrCode":  code,
		"qrImage": image,
	})
}

// ProcessQR resolves a scanned payment request code
// @Summary Process payment QR code
// @Description Resolve a scanned QR code to the payment request it carries; the code is consumed
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} object{data=services.PaymentRequest}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessPaymentRequest(r.Context(), req.QRData)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrQRExpired) {
			status = http.StatusBadRequest
		}
		services.SendErrorResponse(w, err.Error(), status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
