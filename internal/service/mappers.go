package service

import (
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
)

func toLedgerEntryResponse(e *model.LedgerEntry) dto.LedgerEntryResponse {
	resp := dto.LedgerEntryResponse{
		ID:             e.ID.String(),
		ProductID:      e.ProductID.String(),
		Type:           string(e.Type),
		Delta:          e.Delta,
		QuantityBefore: e.QuantityBefore,
		QuantityAfter:  e.QuantityAfter,
		Version:        e.Version,
		UnitPrice:      e.UnitPrice,
		TotalAmount:    e.TotalAmount,
		Notes:          e.Notes,
		Actor:          e.Actor,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.SupplierID != nil {
		s := e.SupplierID.String()
		resp.SupplierID = &s
	}
	if e.ReferenceKind != nil {
		k := string(*e.ReferenceKind)
		resp.ReferenceKind = &k
	}
	if e.ReferenceID != nil {
		r := e.ReferenceID.String()
		resp.ReferenceID = &r
	}
	return resp
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		OwnerID:         o.OwnerID.String(),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Tax:             o.Tax,
		Discount:        o.Discount,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		Lines:           make([]dto.OrderLineResponse, len(o.Lines)),
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, l := range o.Lines {
		resp.Lines[i] = dto.OrderLineResponse{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
		if l.Product != nil {
			resp.Lines[i].ProductName = l.Product.Name
		}
	}
	if o.Payment != nil {
		p := toPaymentResponse(o.Payment)
		resp.Payment = &p
	}
	return resp
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		Method:        p.Method,
		Status:        string(p.Status),
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
	}
	if p.PaidAt != nil {
		s := p.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:             p.ID.String(),
		SKU:            p.SKU,
		Name:           p.Name,
		Slug:           p.Slug,
		Price:          p.Price,
		SalePrice:      p.SalePrice,
		EffectivePrice: p.EffectivePrice(),
		StockQuantity:  p.StockQuantity,
		LedgerVersion:  p.LedgerVersion,
		Active:         p.Active,
	}
}

func toSupplierResponse(s *model.Supplier) dto.SupplierResponse {
	return dto.SupplierResponse{
		ID:     s.ID.String(),
		Code:   s.Code,
		Name:   s.Name,
		Email:  s.Email,
		Active: s.Active,
	}
}

// ToSummaryResponse converts a projection for the HTTP layer.
func ToSummaryResponse(s *Summary) dto.InventorySummaryResponse {
	return dto.InventorySummaryResponse{
		ProductID:       s.ProductID.String(),
		TotalImport:     s.TotalImport,
		TotalExport:     s.TotalExport,
		TotalAdjustment: s.TotalAdjustment,
		ProjectedStock:  s.ProjectedStock,
		EntryCount:      s.EntryCount,
		LiveStock:       s.LiveStock,
		LedgerVersion:   s.LedgerVersion,
	}
}

func ToConsistencyResponse(r *ConsistencyReport) dto.ConsistencyReportResponse {
	resp := dto.ConsistencyReportResponse{
		ProductID:      r.ProductID.String(),
		ProjectedStock: r.ProjectedStock,
		LiveStock:      r.LiveStock,
		Drift:          r.Drift,
		EntryCount:     r.EntryCount,
		LedgerVersion:  r.LedgerVersion,
		ChainBreaks:    make([]dto.ChainBreakResponse, len(r.ChainBreaks)),
		Consistent:     r.Consistent,
	}
	for i, b := range r.ChainBreaks {
		resp.ChainBreaks[i] = dto.ChainBreakResponse{
			Version:        b.Version,
			ExpectedBefore: b.ExpectedBefore,
			ActualBefore:   b.ActualBefore,
			Reason:         b.Reason,
		}
	}
	return resp
}
