package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	confirmationApp "github.com/seatswap/escrow/internal/application/confirmation"
	disputeApp "github.com/seatswap/escrow/internal/application/dispute"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/infrastructure/config"
	"github.com/seatswap/escrow/internal/infrastructure/observability"
	customMW "github.com/seatswap/escrow/internal/middleware"
	"github.com/seatswap/escrow/internal/repository/postgres"
)

type RouterDeps struct {
	Pool                *pgxpool.Pool
	RedisClient         *redis.Client
	PricingService      *pricingApp.Service
	EscrowService       *escrowApp.Service
	ConfirmationService *confirmationApp.Service
	DisputeService      *disputeApp.Service
	Listings            escrowApp.ListingCatalog
	IdempotencyRepo     *postgres.IdempotencyRepository
	Metrics             *observability.Metrics
	CORSConfig          config.CORSConfig
	JWTSecret           string
	WebhookSecret       string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	pricingH := NewPricingController(deps.PricingService, deps.Listings)
	escrowH := NewEscrowController(deps.EscrowService)
	confirmationH := NewConfirmationController(deps.ConfirmationService)
	disputeH := NewDisputeController(deps.DisputeService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)
		authMW := customMW.RequireAuth(deps.JWTSecret)
		adminMW := customMW.RequireAdmin()

		// Gateway settlement callbacks authenticate with a shared secret,
		// not a user token.
		r.With(customMW.RateLimit(300)).
			With(customMW.WebhookAuth(deps.WebhookSecret)).
			Post("/webhooks/payments", escrowH.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Use(customMW.RateLimit(120))

			// Quotes
			r.Post("/quotes", pricingH.CreateQuote)
			r.Get("/quotes/{id}", pricingH.GetQuote)

			// Transactions
			r.With(idempotencyMW).Post("/transactions", escrowH.InitiatePurchase)
			r.Get("/transactions", escrowH.ListTransactions)
			r.Get("/transactions/{id}", escrowH.GetTransaction)
			r.Post("/transactions/{id}/transfer", escrowH.ConfirmTransfer)
			r.Post("/transactions/{id}/receipt", escrowH.ConfirmReceipt)
			r.With(idempotencyMW).Post("/transactions/{id}/cancel", escrowH.CancelTransaction)

			// Payment confirmations
			r.Post("/transactions/{id}/confirmation", confirmationH.Upload)
			r.Get("/transactions/{id}/confirmation", confirmationH.GetByTransaction)
			r.Get("/transactions/{id}/confirmation/file", confirmationH.DownloadProof)

			// Disputes
			r.With(idempotencyMW).Post("/transactions/{id}/disputes", disputeH.Open)
			r.Get("/disputes/{id}", disputeH.Get)

			// Admin surface
			r.Route("/admin", func(r chi.Router) {
				r.Use(adminMW)

				r.Get("/confirmations", confirmationH.ListPending)
				r.Post("/confirmations/{id}/review", confirmationH.Review)
				r.Get("/disputes", disputeH.ListOpen)
				r.Post("/disputes/{id}/resolve", disputeH.Resolve)
				r.Post("/transactions/{id}/refund", escrowH.RefundTransaction)
			})
		})
	})

	return r
}
