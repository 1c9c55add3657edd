package router

import (
	"context"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra"
	"stockledger/internal/middleware"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"
	"stockledger/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const cartTTL = 7 * 24 * time.Hour

// Deps are the process-level collaborators built in main.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	MailerCB  *infra.CircuitBreaker
	Publisher service.EventPublisher
}

// Services exposes what background workers need from the wiring below.
type Services struct {
	Projector *service.InventoryProjector
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) (*gin.Engine, *Services) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	db, rdb := deps.DB, deps.Redis
	events := deps.Publisher
	if events == nil {
		events = infra.LogPublisher{}
	}

	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = 600
	}
	counter := infra.NewRedisCounter(rdb, "ratelimit:")

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(counter, limit, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	uow := repository.NewUnitOfWork(db, cfg.LockTimeoutMS)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	ledger := service.NewStockLedger(productRepo, ledgerRepo)
	projector := service.NewInventoryProjector(productRepo, ledger, infra.NewRedisJSONCache(rdb))
	cartStore := infra.NewRedisCartStore(rdb, cartTTL)

	authSvc := service.NewAuthService(accountRepo, cfg)
	warehouseSvc := service.NewWarehouseService(uow, ledger, supplierRepo, events)
	catalogSvc := service.NewCatalogService(uow, productRepo, supplierRepo, ledger, events)
	cartSvc := service.NewCartService(cartStore, productRepo)
	paymentSvc := service.NewPaymentService(uow, paymentRepo, events)
	orderSvc := service.NewOrderService(service.OrderDeps{
		UnitOfWork: uow,
		Orders:     orderRepo,
		Products:   productRepo,
		Payments:   paymentRepo,
		Ledger:     ledger,
		Pricing:    service.PricingFromConfig(cfg),
		Payment:    service.NewPaymentPolicy(cfg.PaymentMethodList(), cfg.SettledPaymentMethodList()),
		Cart:       cartStore,
		Events:     events,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	inventoryH := handler.NewInventoryHandler(warehouseSvc, projector)
	ordersH := handler.NewOrdersHandler(orderSvc)
	cartH := handler.NewCartHandler(cartSvc)
	paymentsH := handler.NewPaymentsHandler(paymentSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	opsH := handler.NewOpsHandler(map[string]handler.Pinger{
		"db": handler.PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, deps.MailerCB, worker.NewDeadLetters(rdb), worker.QueueEmail)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", opsH.Health)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(counter), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	anyUser := middleware.RequireRole(model.RoleCustomer, model.RoleStaff, model.RoleAdmin)
	backOffice := middleware.RequireRole(model.RoleStaff, model.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		orders := v1.Group("/orders", anyUser)
		{
			orders.POST("", ordersH.Fulfill)
			orders.POST("/checkout", ordersH.Checkout)
			orders.GET("", ordersH.List)
			orders.GET("/:id", ordersH.Get)
			orders.POST("/:id/cancel", ordersH.Cancel)
			orders.POST("/:id/status", ordersH.AdvanceStatus)
		}

		cart := v1.Group("/cart", anyUser)
		{
			cart.GET("", cartH.Get)
			cart.DELETE("", cartH.Clear)
			cart.PUT("/items/:product_id", cartH.SetItem)
			cart.DELETE("/items/:product_id", cartH.RemoveItem)
		}

		v1.POST("/payments/settlements", middleware.RequireRole(model.RoleGateway, model.RoleAdmin), paymentsH.Settle)

		inv := v1.Group("/inventory", anyUser)
		{
			inv.POST("/import", backOffice, inventoryH.Import)
			inv.POST("/export", backOffice, inventoryH.Export)
			inv.POST("/adjust", backOffice, inventoryH.Adjust)
			inv.GET("/ledger", inventoryH.ListLedger)
			inv.GET("/products/:id/summary", inventoryH.Summary)
			inv.GET("/products/:id/consistency", inventoryH.Consistency)
			inv.GET("/products/:id/report.pdf", inventoryH.ReportPDF)
		}

		// Catalog reads are open to every role; writes are back-office only.
		v1.GET("/products", anyUser, catalogH.ListProducts)
		v1.GET("/products/:id", anyUser, catalogH.GetProduct)
		v1.POST("/products", backOffice, catalogH.CreateProduct)
		v1.PUT("/products/:id", backOffice, catalogH.UpdateProduct)

		v1.GET("/suppliers", anyUser, catalogH.ListSuppliers)
		v1.POST("/suppliers", backOffice, catalogH.CreateSupplier)

		v1.POST("/ops/dead-letters/redrive", middleware.RequireRole(model.RoleAdmin), opsH.Redrive)
	}

	// Swagger UI: only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, &Services{Projector: projector}
}
