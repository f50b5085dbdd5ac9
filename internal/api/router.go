package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"topup-service/internal/api/handlers"
	"topup-service/internal/auth"
	"topup-service/internal/config"
	"topup-service/internal/metrics"
	"topup-service/internal/middleware"
	repo "topup-service/internal/repository"
	"topup-service/internal/services"
)

type RouterDeps struct {
	Cfg        config.Config
	TM         *auth.TokenManager
	AccountSvc *services.AccountService
	OrderSvc   *services.OrderService
	PaymentSvc *services.PaymentService
	WalletSvc  *services.WalletService
	Sweeper    *services.Sweeper
	Tiers      repo.BonusTiers
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authH := handlers.NewAuth(d.AccountSvc)
	ordersH := handlers.NewOrders(d.OrderSvc, d.PaymentSvc)
	paymentsH := handlers.NewPayments(d.PaymentSvc)
	walletH := handlers.NewWallet(d.WalletSvc)
	adminH := handlers.NewAdmin(d.PaymentSvc, d.Sweeper, d.OrderSvc, d.Tiers)
	authMW := middleware.NewAuthMiddleware(d.TM)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// Gateway-facing endpoints are unauthenticated: webhooks carry their
	// own signatures, returns are plain browser redirects.
	r.Post("/webhooks/{gateway}", paymentsH.Webhook)
	r.Get("/payments/return/{outcome}", paymentsH.Return)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Get("/bonus/preview", ordersH.BonusPreview)

			r.Post("/orders", ordersH.Create)
			r.Get("/orders/pending", ordersH.ListPending)
			r.Get("/orders/{id}", ordersH.Get)
			r.Post("/orders/{id}/checkout", ordersH.Checkout)
			r.Post("/orders/{id}/cancel", ordersH.Cancel)

			r.Get("/payments/{id}/status", paymentsH.Status)

			r.Get("/wallet", walletH.Balance)
			r.Get("/wallet/entries", walletH.Entries)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole("staff"))
				r.Post("/orders/{id}/confirm", adminH.ConfirmOrder)
				r.Post("/reconcile", adminH.Reconcile)
				r.Get("/tiers", adminH.ListTiers)
				r.Post("/tiers", adminH.CreateTier)
			})
		})
	})

	return r
}
