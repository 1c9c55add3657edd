package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type CartHandler struct{ svc service.CartService }

func NewCartHandler(svc service.CartService) *CartHandler { return &CartHandler{svc: svc} }

func (h *CartHandler) Get(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), who.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetItem sets the quantity of one product; it does not add to it.
func (h *CartHandler) SetItem(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	var req dto.CartItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetItem(c.Request.Context(), who.ID, productID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveItem(c.Request.Context(), who.ID, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) Clear(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}
	if err := h.svc.Clear(c.Request.Context(), who.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
