// Command seedcatalog creates or updates the admin account and a handful of
// demo products. Opening stock goes through the catalog service, so every
// unit is backed by a ledger entry.
// Usage: go run ./cmd/seedcatalog
package main

import (
	"context"
	"errors"
	"os"

	"stockledger/internal/apierror"
	"stockledger/internal/config"
	"stockledger/internal/dto"
	"stockledger/internal/infra"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type demoProduct struct {
	sku   string
	name  string
	price string
	sale  string
	stock int
}

var demoProducts = []demoProduct{
	{"KB-TKL-01", "Mechanical Keyboard TKL", "1290000", "", 25},
	{"MS-WL-02", "Wireless Mouse", "450000", "399000", 60},
	{"MN-27-03", "27\" IPS Monitor", "5490000", "", 8},
	{"CB-USBC-04", "USB-C Cable 2m", "120000", "", 200},
	{"HS-BT-05", "Bluetooth Headset", "990000", "890000", 0},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	ctx := context.Background()

	username := envOr("SEED_ADMIN_USERNAME", "admin")
	password := envOr("SEED_ADMIN_PASSWORD", "admin1234")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}
	accounts := repository.NewAccountRepository(db)
	if err := accounts.Upsert(ctx, &model.Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Active:       true,
	}); err != nil {
		log.Fatal().Err(err).Msg("upsert admin")
	}
	log.Info().Str("username", username).Msg("admin account ready")

	products := repository.NewProductRepository(db)
	suppliers := repository.NewSupplierRepository(db)
	ledger := service.NewStockLedger(products, repository.NewLedgerRepository(db))
	catalog := service.NewCatalogService(
		repository.NewUnitOfWork(db, cfg.LockTimeoutMS),
		products, suppliers, ledger, infra.LogPublisher{},
	)

	created := 0
	for _, p := range demoProducts {
		req := dto.CreateProductRequest{
			SKU:          p.sku,
			Name:         p.name,
			Price:        decimal.RequireFromString(p.price),
			InitialStock: p.stock,
		}
		if p.sale != "" {
			sale := decimal.RequireFromString(p.sale)
			req.SalePrice = &sale
		}
		resp, err := catalog.CreateProduct(ctx, "seedcatalog", req)
		var dup *apierror.ValidationError
		if errors.As(err, &dup) {
			log.Info().Str("sku", p.sku).Msg("already present, skipped")
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("sku", p.sku).Msg("create product")
		}
		created++
		log.Info().Str("sku", resp.SKU).Int("stock", resp.StockQuantity).Msg("product seeded")
	}
	log.Info().Int("created", created).Int("total", len(demoProducts)).Msg("catalog seeded")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
