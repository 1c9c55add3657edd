package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentsHandler struct{ svc service.PaymentService }

func NewPaymentsHandler(svc service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

// Settle godoc
// @Summary Report the outcome of a pending payment
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.SettlementRequest true "Settlement"
// @Success 200 {object} dto.PaymentResponse
// @Failure 409 {object} apierror.APIError "payment already settled"
// @Router /v1/payments/settlements [post]
func (h *PaymentsHandler) Settle(c *gin.Context) {
	var req dto.SettlementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Settle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
