package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item. StockQuantity is the authoritative live counter
// and is only ever written by the ledgered stock-mutation primitive, which also
// bumps LedgerVersion so that the counter and the entry chain move together.
type Product struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU           string           `gorm:"column:sku;uniqueIndex;not null"`
	Name          string           `gorm:"not null"`
	Slug          string           `gorm:"index;not null"`
	Price         decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	SalePrice     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	StockQuantity int              `gorm:"not null;default:0"`
	LedgerVersion int64            `gorm:"not null;default:0"`
	Active        bool             `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectivePrice is the unit price charged at checkout.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// Slugify derives a URL-safe identifier from a product name. It is called
// explicitly by the catalog service whenever the name is set.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
