package ports

import "context"

type PaymentIntent struct {
	ClientSecret string
	AccountID    string
}

// PaymentProcessor fronts the billing provider for the tipping and unlock
// flows. Subscription billing itself is driven by webhooks outside this
// client.
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (PaymentIntent, error)
	ConfirmPayment(ctx context.Context, clientSecret string) error
}
