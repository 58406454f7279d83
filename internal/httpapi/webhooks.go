package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MarkoPoloResearchLab/roomai/internal/payment"
	"github.com/MarkoPoloResearchLab/roomai/pkg/credits"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	stripeSignatureHeader   = "Stripe-Signature"
	razorpaySignatureHeader = "X-Razorpay-Signature"
)

func (handler *httpHandler) handleStripeWebhook(ctx *gin.Context) {
	handler.handleProviderWebhook(ctx, payment.ProviderStripe, stripeSignatureHeader, handler.stripe.ParseWebhook)
}

func (handler *httpHandler) handleRazorpayWebhook(ctx *gin.Context) {
	handler.handleProviderWebhook(ctx, payment.ProviderRazorpay, razorpaySignatureHeader, handler.razorpay.ParseWebhook)
}

// handleProviderWebhook reads the raw body before anything parses it; both
// providers verify their signature over the exact received bytes.
func (handler *httpHandler) handleProviderWebhook(ctx *gin.Context, provider string, signatureHeader string, parse func(payload []byte, signature string) (*payment.CapturedPayment, error)) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		handler.logger.Warn("webhook body read failed", zap.String("provider", provider), zap.Error(err))
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}

	captured, err := parse(payload, ctx.GetHeader(signatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			handler.logger.Warn("webhook signature mismatch", zap.String("provider", provider))
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_signature", "signature verification failed"))
			return
		}
		handler.logger.Warn("webhook event rejected", zap.String("provider", provider), zap.Error(err))
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_event", "event could not be processed"))
		return
	}
	if captured == nil {
		// Verified but uninteresting event type. Acknowledge so the provider
		// stops redelivering.
		ctx.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := handler.grantCapturedPayment(ctx.Request.Context(), captured); err != nil {
		if errors.Is(err, credits.ErrDuplicateEvent) {
			handler.logger.Info("webhook event already applied",
				zap.String("provider", provider),
				zap.String("event_key", captured.EventKey))
			ctx.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		handler.logger.Error("webhook credit grant failed",
			zap.String("provider", provider),
			zap.String("event_key", captured.EventKey),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("webhook_error", "event processing failed"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true})
}

func (handler *httpHandler) grantCapturedPayment(ctx context.Context, captured *payment.CapturedPayment) error {
	if captured.Credits == 0 {
		// A payment for an unmapped amount carries zero credits; there is
		// nothing to grant, but the event is still acknowledged.
		handler.logger.Warn("captured payment carries zero credits",
			zap.String("provider", captured.Provider),
			zap.String("event_key", captured.EventKey),
			zap.String("user_id", captured.UserID))
		return nil
	}
	userID, err := credits.NewUserID(captured.UserID)
	if err != nil {
		return err
	}
	amount, err := credits.NewPositiveCreditAmount(captured.Credits)
	if err != nil {
		return err
	}
	eventKey, err := credits.NewEventKey(captured.EventKey)
	if err != nil {
		return err
	}
	metadata, err := credits.NewMetadataJSON(marshalEventMetadata(captured))
	if err != nil {
		return err
	}
	return handler.credits.Grant(ctx, userID, amount, eventKey, captured.Provider, metadata)
}

func marshalEventMetadata(captured *payment.CapturedPayment) string {
	raw, err := json.Marshal(map[string]string{"provider": captured.Provider, "event_key": captured.EventKey})
	if err != nil {
		return "{}"
	}
	return string(raw)
}
