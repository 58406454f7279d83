package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/roomai/internal/payment"
	"github.com/MarkoPoloResearchLab/roomai/internal/redesign"
	"github.com/MarkoPoloResearchLab/roomai/pkg/credits"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type paymentRequest struct {
	Amount   int64  `json:"amount"`
	Provider string `json:"provider"`
}

type redesignRequest struct {
	ImageURL string `json:"imageUrl"`
	RoomType string `json:"roomType"`
	Style    string `json:"style"`
}

func (handler *httpHandler) handlePayment(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := credits.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session subject"))
		return
	}
	var request paymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	creditQuantity := payment.CreditsForAmount(request.Amount)
	if creditQuantity == 0 {
		handler.logger.Warn("payment amount outside pricing table",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", request.Amount))
	}

	switch request.Provider {
	case payment.ProviderStripe:
		session, err := handler.stripe.CreateCheckoutSession(ctx.Request.Context(), userID.String(), request.Amount, creditQuantity)
		if err != nil {
			handler.logger.Error("stripe checkout session failed", zap.Error(err), zap.String("user_id", userID.String()))
			ctx.JSON(http.StatusInternalServerError, errorResponse("payment_error", "payment error"))
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"url": session.URL})
	case payment.ProviderRazorpay:
		order, err := handler.razorpay.CreateOrder(ctx.Request.Context(), userID.String(), request.Amount, creditQuantity)
		if err != nil {
			handler.logger.Error("razorpay order failed", zap.Error(err), zap.String("user_id", userID.String()))
			ctx.JSON(http.StatusInternalServerError, errorResponse("payment_error", "payment error"))
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"id":       order.OrderID,
			"amount":   order.Amount,
			"currency": order.Currency,
			"credits":  order.Credits,
		})
	default:
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_provider", "invalid payment provider"))
	}
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := credits.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session subject"))
		return
	}
	balance, err := handler.credits.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.logger.Error("balance fetch failed", zap.Error(err), zap.String("user_id", userID.String()))
		ctx.JSON(http.StatusBadGateway, errorResponse("credits_error", "balance unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"credits": balance.Int64()})
}

func (handler *httpHandler) handleRedesign(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request redesignRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := credits.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session subject"))
		return
	}

	cost, err := credits.NewPositiveCreditAmount(redesignCostCredits)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "redesign unavailable"))
		return
	}
	if err := handler.credits.Deduct(ctx.Request.Context(), userID, cost); err != nil {
		if errors.Is(err, credits.ErrInsufficientFunds) {
			ctx.JSON(http.StatusPaymentRequired, errorResponse("insufficient_credits", "not enough credits"))
			return
		}
		handler.logger.Error("credit deduction failed", zap.Error(err), zap.String("user_id", userID.String()))
		ctx.JSON(http.StatusBadGateway, errorResponse("credits_error", "balance unavailable"))
		return
	}

	outputURL, err := handler.generator.Redesign(ctx.Request.Context(), redesign.Request{
		ImageURL: request.ImageURL,
		RoomType: request.RoomType,
		Style:    request.Style,
	})
	if err != nil {
		// The credit is already spent; log with the user id so support can
		// re-grant manually.
		handler.logger.Error("redesign generation failed after deduction",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		ctx.JSON(http.StatusBadGateway, errorResponse("generation_error", "redesign failed"))
		return
	}

	balance, err := handler.credits.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.logger.Error("balance fetch failed", zap.Error(err), zap.String("user_id", userID.String()))
		ctx.JSON(http.StatusOK, gin.H{"outputUrl": outputURL})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"outputUrl": outputURL, "credits": balance.Int64()})
}
