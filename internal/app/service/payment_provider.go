package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"github.com/avolkau/lavka-backend/pkg/payment/yookassa"
)

var ErrPaymentGateway = errors.New("payment gateway unavailable")

// PaymentProvider creates a payment session for an order and returns the
// URL the customer is redirected to, plus the provider's payment ID.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, order *model.Order) (url string, externalID string, err error)
}

type yookassaProvider struct {
	client *yookassa.Client
}

func NewYooKassaProvider(client *yookassa.Client) PaymentProvider {
	return &yookassaProvider{client: client}
}

func (p *yookassaProvider) CreatePaymentLink(ctx context.Context, order *model.Order) (string, string, error) {
	logger.Info("Creating payment session", map[string]interface{}{
		"order_id":    order.ID,
		"total_price": order.TotalPrice,
	})

	payment, err := p.client.CreatePayment(ctx, yookassa.CreatePaymentRequest{
		Amount: yookassa.Amount{
			Value: fmt.Sprintf("%.2f", order.TotalPrice),
		},
		Confirmation: yookassa.Confirmation{
			Type: "redirect",
		},
		Capture:     true,
		Description: fmt.Sprintf("Payment for the order №%d", order.ID),
		Metadata: map[string]string{
			"order_id": fmt.Sprintf("%d", order.ID),
		},
	})
	if err != nil {
		logger.Error("Payment session creation failed", err, map[string]interface{}{
			"order_id": order.ID,
		})
		return "", "", fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	if payment.Confirmation == nil || payment.Confirmation.ConfirmationURL == "" {
		logger.Error("Payment session has no confirmation URL", nil, map[string]interface{}{
			"order_id":   order.ID,
			"payment_id": payment.ID,
		})
		return "", "", fmt.Errorf("%w: missing confirmation URL", ErrPaymentGateway)
	}

	logger.Info("Payment session created", map[string]interface{}{
		"order_id":   order.ID,
		"payment_id": payment.ID,
	})

	return payment.Confirmation.ConfirmationURL, payment.ID, nil
}
