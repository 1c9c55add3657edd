package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type OrdersHandler struct{ svc service.OrderService }

func NewOrdersHandler(svc service.OrderService) *OrdersHandler { return &OrdersHandler{svc: svc} }

// Fulfill godoc
// @Summary Place an order and take its stock
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.FulfillOrderRequest true "Order"
// @Success 201 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError "insufficient_stock or concurrency_conflict"
// @Failure 422 {object} apierror.APIError
// @Router /v1/orders [post]
func (h *OrdersHandler) Fulfill(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	var req dto.FulfillOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Fulfill(c.Request.Context(), who.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Checkout godoc
// @Summary Place an order from the caller's cart
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CheckoutRequest true "Checkout"
// @Success 201 {object} dto.OrderResponse
// @Router /v1/orders/checkout [post]
func (h *OrdersHandler) Checkout(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Checkout(c.Request.Context(), who.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrdersHandler) List(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	var q dto.OrderQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), who, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrdersHandler) Get(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Cancel a pending order and restore its stock
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "invalid_state or concurrency_conflict"
// @Router /v1/orders/{id}/cancel [post]
func (h *OrdersHandler) Cancel(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), who.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrdersHandler) AdvanceStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AdvanceStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AdvanceStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
