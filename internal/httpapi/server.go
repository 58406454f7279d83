package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/roomai/internal/payment"
	"github.com/MarkoPoloResearchLab/roomai/internal/redesign"
	"github.com/MarkoPoloResearchLab/roomai/pkg/credits"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// StripeGateway is the slice of the Stripe provider the HTTP layer uses.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, userID string, amountUSD int64, creditQuantity int64) (payment.CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string) (*payment.CapturedPayment, error)
}

// RazorpayGateway is the slice of the Razorpay provider the HTTP layer uses.
type RazorpayGateway interface {
	CreateOrder(ctx context.Context, userID string, amount int64, creditQuantity int64) (payment.Order, error)
	ParseWebhook(payload []byte, signatureHeader string) (*payment.CapturedPayment, error)
}

// Dependencies carries the wired collaborators for the HTTP server.
type Dependencies struct {
	Logger    *zap.Logger
	Credits   *credits.Service
	Stripe    StripeGateway
	Razorpay  RazorpayGateway
	Generator redesign.Generator
}

func (deps Dependencies) validate() error {
	if deps.Logger == nil {
		return fmt.Errorf("logger dependency is nil")
	}
	if deps.Credits == nil {
		return fmt.Errorf("credits service dependency is nil")
	}
	if deps.Stripe == nil {
		return fmt.Errorf("stripe gateway dependency is nil")
	}
	if deps.Razorpay == nil {
		return fmt.Errorf("razorpay gateway dependency is nil")
	}
	if deps.Generator == nil {
		return fmt.Errorf("redesign generator dependency is nil")
	}
	return nil
}

// Run boots the HTTP server using the supplied configuration and blocks until
// the context is canceled or the listener fails.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}

	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}

	handler := &httpHandler{
		logger:    deps.Logger,
		credits:   deps.Credits,
		stripe:    deps.Stripe,
		razorpay:  deps.Razorpay,
		generator: deps.Generator,
	}

	router := setupRouter(cfg, handler, sessionValidator)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("roomai api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			deps.Logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Webhooks authenticate by signature over the raw body, not by session.
	router.POST("/api/payment/webhook", handler.handleStripeWebhook)
	router.POST("/api/payment/razorpay-webhook", handler.handleRazorpayWebhook)

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(authClaimsKey))

	api.POST("/payment", handler.handlePayment)
	api.GET("/wallet", handler.handleWallet)
	api.POST("/redesign", handler.handleRedesign)

	return router
}

type httpHandler struct {
	logger    *zap.Logger
	credits   *credits.Service
	stripe    StripeGateway
	razorpay  RazorpayGateway
	generator redesign.Generator
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(authClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
