package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sunvolt/solarshop/internal/auth"
	"github.com/sunvolt/solarshop/internal/cart"
	"github.com/sunvolt/solarshop/internal/catalog"
	"github.com/sunvolt/solarshop/internal/checkout"
	"github.com/sunvolt/solarshop/internal/config"
	"github.com/sunvolt/solarshop/internal/fulfillment"
	"github.com/sunvolt/solarshop/internal/handler"
	"github.com/sunvolt/solarshop/internal/mail"
	"github.com/sunvolt/solarshop/internal/order"
	"github.com/sunvolt/solarshop/internal/payment"
)

// NewRouter wires repositories, services and handlers onto one chi mux.
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	productRepo := catalog.NewRepository(pool)
	cartRepo := cart.NewRepository(pool)
	orderRepo := order.NewRepository(pool)
	fulfillmentRepo := fulfillment.NewRepository(pool)

	paymentClient := payment.NewClient(cfg.Payment)
	mailer := mail.NewMailer(cfg.Mail)

	cartSvc := cart.NewService(cartRepo, productRepo, cfg.App.DefaultCurrency)
	checkoutSvc := checkout.NewService(cartRepo, productRepo, paymentClient, checkout.Config{
		SuccessURL:    cfg.Payment.SuccessURL,
		CancelURL:     cfg.Payment.CancelURL,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})
	orderSvc := order.NewService(orderRepo)
	fulfillmentSvc := fulfillment.NewService(fulfillmentRepo, orderRepo, paymentClient, mailer)

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Webhook endpoint is outside the auth middleware: the provider
	// authenticates with its signature, not a bearer token.
	handler.NewWebhookHandler(fulfillmentSvc).RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		handler.NewCartHandler(cartSvc).RegisterRoutes(r)
		handler.NewCheckoutHandler(checkoutSvc).RegisterRoutes(r)
		handler.NewOrderHandler(orderSvc).RegisterRoutes(r)
	})

	return r
}
