package app

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"booking-service/internal/domain"
)

// PaymentIntent is the provider's handle for a pending charge.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, bookingID int64) (PaymentIntent, error)
}

// StripePayments creates PaymentIntents through the Stripe API.
type StripePayments struct {
	api *client.API
}

func NewStripePayments(key string) *StripePayments {
	api := &client.API{}
	api.Init(key, nil)
	return &StripePayments{api: api}
}

func (s *StripePayments) CreateIntent(ctx context.Context, amount int64, currency string, bookingID int64) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if bookingID > 0 {
		params.AddMetadata("booking_id", strconv.FormatInt(bookingID, 10))
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntent{}, err
	}
	return PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

var errPaymentsDisabled = &domain.Error{Kind: domain.KindUnavailable, Message: "Payments are not configured."}

type intentReq struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	BookingID int64   `json:"booking_id"`
}

// POST /payments/intent
func (a *App) CreatePaymentIntentHandler(c *gin.Context) {
	var req intentReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == 0 || req.Currency == "" {
		a.badRequest(c, "Amount and currency are required.")
		return
	}
	if req.Amount != math.Trunc(req.Amount) {
		a.badRequest(c, "Invalid payment amount.")
		return
	}
	amount := int64(req.Amount)
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if err := domain.ValidatePayment(amount, currency); err != nil {
		a.respond(c, err)
		return
	}
	if a.Payments == nil {
		a.respond(c, errPaymentsDisabled)
		return
	}

	ctx := c.Request.Context()
	if req.BookingID > 0 {
		b, err := a.Store.GetBooking(ctx, req.BookingID)
		if err != nil {
			a.respond(c, err)
			return
		}
		if claims := caller(c); !claims.Owner() && (claims == nil || claims.ID != b.UserID) {
			a.respond(c, domain.Forbidden("Not allowed to pay for this booking."))
			return
		}
	}

	intent, err := a.Payments.CreateIntent(ctx, amount, currency, req.BookingID)
	if err != nil {
		a.respond(c, domain.Dependency("Payment processing error.", err))
		return
	}

	if req.BookingID > 0 {
		p := domain.Payment{
			BookingID:       req.BookingID,
			Amount:          amount,
			Currency:        currency,
			Status:          intent.Status,
			PaymentIntentID: intent.ID,
		}
		if err := a.Store.CreatePayment(ctx, &p); err != nil {
			a.logger().Error("failed to record payment",
				zap.Int64("booking_id", req.BookingID), zap.String("intent", intent.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret, "id": intent.ID})
}
