package service

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Summary is the replay of a product's ledger.
type Summary struct {
	ProductID       uuid.UUID `json:"product_id"`
	TotalImport     int       `json:"total_import"`
	TotalExport     int       `json:"total_export"` // magnitude
	TotalAdjustment int       `json:"total_adjustment"`
	ProjectedStock  int       `json:"projected_stock"`
	EntryCount      int       `json:"entry_count"`
	LiveStock       int       `json:"live_stock"`
	LedgerVersion   int64     `json:"ledger_version"`
}

// ChainBreak is one place where an entry does not continue its predecessor.
type ChainBreak struct {
	Version        int64
	ExpectedBefore int
	ActualBefore   int
	Reason         string
}

// ConsistencyReport compares the replayed ledger with the live counter.
// Drift is live minus projected.
type ConsistencyReport struct {
	Summary
	Drift       int
	ChainBreaks []ChainBreak
	Consistent  bool
}

// Project folds entries into totals. It is pure and order independent.
func Project(entries []model.LedgerEntry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Type {
		case model.EntryImport:
			s.TotalImport += e.Delta
		case model.EntryExport:
			s.TotalExport += -e.Delta
		case model.EntryAdjustment:
			s.TotalAdjustment += e.Delta
		}
		s.EntryCount++
	}
	s.ProjectedStock = s.TotalImport - s.TotalExport + s.TotalAdjustment
	return s
}

// VerifyChain checks entries sorted by version ASC. Versions must run 1..n
// without gaps, each entry must satisfy after = before + delta, and each
// before must equal the previous after (the first one starts at 0).
func VerifyChain(entries []model.LedgerEntry) []ChainBreak {
	var breaks []ChainBreak
	prevAfter := 0
	for i, e := range entries {
		if want := int64(i + 1); e.Version != want {
			breaks = append(breaks, ChainBreak{
				Version: e.Version,
				Reason:  fmt.Sprintf("version gap: expected %d", want),
			})
		}
		if e.QuantityBefore != prevAfter {
			breaks = append(breaks, ChainBreak{
				Version:        e.Version,
				ExpectedBefore: prevAfter,
				ActualBefore:   e.QuantityBefore,
				Reason:         "quantity_before does not match previous quantity_after",
			})
		}
		if e.QuantityAfter != e.QuantityBefore+e.Delta {
			breaks = append(breaks, ChainBreak{
				Version:        e.Version,
				ExpectedBefore: e.QuantityBefore,
				ActualBefore:   e.QuantityBefore,
				Reason:         "quantity_after does not equal quantity_before + delta",
			})
		}
		prevAfter = e.QuantityAfter
	}
	return breaks
}

const summaryCacheTTL = 10 * time.Minute

// InventoryProjector derives totals from the ledger read path only. It never
// writes stock.
type InventoryProjector struct {
	products repository.ProductRepository
	ledger   *StockLedger
	cache    SummaryCache
}

// NewInventoryProjector builds a projector. cache may be nil.
func NewInventoryProjector(products repository.ProductRepository, ledger *StockLedger, cache SummaryCache) *InventoryProjector {
	return &InventoryProjector{products: products, ledger: ledger, cache: cache}
}

func summaryKey(id uuid.UUID, version int64) string {
	return fmt.Sprintf("inventory:summary:%s:v%d", id, version)
}

// Summarize returns the projection as of the product's current ledger
// version. The cache key carries that version, so any new entry makes older
// cached values unreachable.
func (p *InventoryProjector) Summarize(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "InventoryProjector.Summarize")
	defer span.End()

	product, err := p.products.FindByID(ctx, productID)
	if err != nil {
		return nil, lookupErr("product", productID, err)
	}

	key := summaryKey(product.ID, product.LedgerVersion)
	if p.cache != nil {
		var cached Summary
		if ok, err := p.cache.GetJSON(ctx, key, &cached); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("summary cache read failed")
		} else if ok {
			return &cached, nil
		}
	}

	entries, err := p.ledger.History(ctx, productID)
	if err != nil {
		return nil, err
	}
	s := summarizeAt(product, entries)

	if p.cache != nil {
		if err := p.cache.SetJSON(ctx, key, s, summaryCacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("summary cache write failed")
		}
	}
	return &s, nil
}

// summarizeAt ignores entries committed after product was read, so the
// projection and the live counter describe the same instant.
func summarizeAt(product *model.Product, entries []model.LedgerEntry) Summary {
	s := Project(visibleAt(product, entries))
	s.ProductID = product.ID
	s.LiveStock = product.StockQuantity
	s.LedgerVersion = product.LedgerVersion
	return s
}

func visibleAt(product *model.Product, entries []model.LedgerEntry) []model.LedgerEntry {
	visible := make([]model.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Version <= product.LedgerVersion {
			visible = append(visible, e)
		}
	}
	return visible
}

// CheckConsistency flags drift and chain breaks. It never corrects anything.
func (p *InventoryProjector) CheckConsistency(ctx context.Context, productID uuid.UUID) (*ConsistencyReport, error) {
	product, err := p.products.FindByID(ctx, productID)
	if err != nil {
		return nil, lookupErr("product", productID, err)
	}
	entries, err := p.ledger.History(ctx, productID)
	if err != nil {
		return nil, err
	}
	return buildReport(product, entries), nil
}

func buildReport(product *model.Product, entries []model.LedgerEntry) *ConsistencyReport {
	s := summarizeAt(product, entries)
	r := &ConsistencyReport{
		Summary:     s,
		Drift:       s.LiveStock - s.ProjectedStock,
		ChainBreaks: VerifyChain(visibleAt(product, entries)),
	}
	if int64(s.EntryCount) != product.LedgerVersion {
		r.ChainBreaks = append(r.ChainBreaks, ChainBreak{
			Version: product.LedgerVersion,
			Reason:  fmt.Sprintf("ledger_version %d but %d entries", product.LedgerVersion, s.EntryCount),
		})
	}
	r.Consistent = r.Drift == 0 && len(r.ChainBreaks) == 0
	return r
}

const checkAllPageSize = 200

// CheckAll scans every product, active or not, and returns only the
// inconsistent reports.
func (p *InventoryProjector) CheckAll(ctx context.Context) ([]ConsistencyReport, error) {
	ctx, span := tracer.Start(ctx, "InventoryProjector.CheckAll")
	defer span.End()

	var bad []ConsistencyReport
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return bad, err
		}
		products, total, err := p.products.List(ctx, repository.ProductFilter{Active: "all", Page: page, Limit: checkAllPageSize})
		if err != nil {
			return bad, fmt.Errorf("list products: %w", err)
		}
		for i := range products {
			entries, err := p.ledger.History(ctx, products[i].ID)
			if err != nil {
				return bad, err
			}
			if r := buildReport(&products[i], entries); !r.Consistent {
				bad = append(bad, *r)
			}
		}
		if int64(page*checkAllPageSize) >= total || len(products) == 0 {
			break
		}
	}
	return bad, nil
}

// Replay returns the product, its full chain and its projection, as needed by
// the audit report.
func (p *InventoryProjector) Replay(ctx context.Context, productID uuid.UUID) (*model.Product, []model.LedgerEntry, *Summary, error) {
	product, err := p.products.FindByID(ctx, productID)
	if err != nil {
		return nil, nil, nil, lookupErr("product", productID, err)
	}
	entries, err := p.ledger.History(ctx, productID)
	if err != nil {
		return nil, nil, nil, err
	}
	s := summarizeAt(product, entries)
	return product, visibleAt(product, entries), &s, nil
}
