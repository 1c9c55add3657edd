package infra

// pdf.go: ledger audit report rendered with go-pdf/fpdf.
// One A4 page set per product with:
//   - Product header and live counter
//   - Totals by entry type and the projected stock
//   - The entry chain, oldest first, with before/after snapshots

import (
	"fmt"
	"io"
	"time"

	"stockledger/internal/model"

	"github.com/go-pdf/fpdf"
)

// LedgerReport is everything the audit PDF renders.
type LedgerReport struct {
	Product         model.Product
	Entries         []model.LedgerEntry // chain order (version ASC)
	TotalImport     int
	TotalExport     int
	TotalAdjustment int
	ProjectedStock  int
	GeneratedAt     time.Time
}

// RenderLedgerReport writes the report as PDF to w.
func RenderLedgerReport(w io.Writer, r LedgerReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Stock ledger audit", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%s  (%s)", r.Product.Name, r.Product.SKU), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Product ID: "+r.Product.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Generated: "+r.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Totals ────────────────────────────────────────────────────────────────
	status := "CONSISTENT"
	if r.ProjectedStock != r.Product.StockQuantity {
		status = fmt.Sprintf("DRIFT %+d", r.Product.StockQuantity-r.ProjectedStock)
	}
	totals := [][2]string{
		{"Imported", fmt.Sprintf("%d", r.TotalImport)},
		{"Exported", fmt.Sprintf("%d", r.TotalExport)},
		{"Adjusted (net)", fmt.Sprintf("%+d", r.TotalAdjustment)},
		{"Projected stock", fmt.Sprintf("%d", r.ProjectedStock)},
		{"Live stock", fmt.Sprintf("%d", r.Product.StockQuantity)},
		{"Entries", fmt.Sprintf("%d", len(r.Entries))},
		{"Status", status},
	}
	for _, row := range totals {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(40, 5, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(40, 5, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Entry table ───────────────────────────────────────────────────────────
	cols := []struct {
		title string
		width float64
		align string
	}{
		{"#", 10, "R"},
		{"When", 36, "L"},
		{"Type", 22, "L"},
		{"Delta", 16, "R"},
		{"Before", 16, "R"},
		{"After", 16, "R"},
		{"Ref", 20, "L"},
		{"Actor", contentW - 136, "L"},
	}
	pdf.SetFont("Helvetica", "B", 8)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.title, "B", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, e := range r.Entries {
		ref := ""
		if e.ReferenceKind != nil {
			ref = string(*e.ReferenceKind)
		}
		actor := e.Actor
		if len(actor) > 28 {
			actor = actor[:27] + "~"
		}
		values := []string{
			fmt.Sprintf("%d", e.Version),
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(e.Type),
			fmt.Sprintf("%+d", e.Delta),
			fmt.Sprintf("%d", e.QuantityBefore),
			fmt.Sprintf("%d", e.QuantityAfter),
			ref,
			actor,
		}
		for i, c := range cols {
			pdf.CellFormat(c.width, 5, values[i], "", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render ledger report: %w", err)
	}
	return nil
}
