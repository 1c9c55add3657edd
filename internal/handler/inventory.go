package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/infra"
	"stockledger/internal/model"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InventoryReader is the read side served by service.InventoryProjector.
type InventoryReader interface {
	Summarize(ctx context.Context, productID uuid.UUID) (*service.Summary, error)
	CheckConsistency(ctx context.Context, productID uuid.UUID) (*service.ConsistencyReport, error)
	Replay(ctx context.Context, productID uuid.UUID) (*model.Product, []model.LedgerEntry, *service.Summary, error)
}

type InventoryHandler struct {
	warehouse service.WarehouseService
	projector InventoryReader
}

func NewInventoryHandler(warehouse service.WarehouseService, projector InventoryReader) *InventoryHandler {
	return &InventoryHandler{warehouse: warehouse, projector: projector}
}

// Import godoc
// @Summary Receive stock into the warehouse
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ImportStockRequest true "Import"
// @Success 201 {object} dto.LedgerEntryResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/inventory/import [post]
func (h *InventoryHandler) Import(c *gin.Context) {
	var req dto.ImportStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.warehouse.Import(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Export godoc
// @Summary Remove stock from the warehouse
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ExportStockRequest true "Export"
// @Success 201 {object} dto.LedgerEntryResponse
// @Failure 409 {object} apierror.APIError "insufficient_stock or concurrency_conflict"
// @Router /v1/inventory/export [post]
func (h *InventoryHandler) Export(c *gin.Context) {
	var req dto.ExportStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.warehouse.Export(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Adjust godoc
// @Summary Set the counter to a counted quantity
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AdjustStockRequest true "Adjustment"
// @Success 201 {object} dto.LedgerEntryResponse
// @Router /v1/inventory/adjust [post]
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.warehouse.Adjust(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListLedger godoc
// @Summary Query ledger entries
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param product_id query string false "Product"
// @Param supplier_id query string false "Supplier"
// @Param type query string false "import, export or adjustment"
// @Param from query string false "RFC 3339 or YYYY-MM-DD"
// @Param to query string false "RFC 3339 or YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.LedgerListResponse
// @Router /v1/inventory/ledger [get]
func (h *InventoryHandler) ListLedger(c *gin.Context) {
	var q dto.LedgerQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.warehouse.QueryLedger(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Summary godoc
// @Summary Ledger totals and projected stock for a product
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} dto.InventorySummaryResponse
// @Router /v1/inventory/products/{id}/summary [get]
func (h *InventoryHandler) Summary(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	s, err := h.projector.Summarize(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToSummaryResponse(s))
}

func (h *InventoryHandler) Consistency(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	r, err := h.projector.CheckConsistency(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToConsistencyResponse(r))
}

// ReportPDF streams the ledger audit report for one product.
func (h *InventoryHandler) ReportPDF(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	product, entries, s, err := h.projector.Replay(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	err = infra.RenderLedgerReport(&buf, infra.LedgerReport{
		Product:         *product,
		Entries:         entries,
		TotalImport:     s.TotalImport,
		TotalExport:     s.TotalExport,
		TotalAdjustment: s.TotalAdjustment,
		ProjectedStock:  s.ProjectedStock,
		GeneratedAt:     time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="ledger-%s.pdf"`, product.SKU))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
