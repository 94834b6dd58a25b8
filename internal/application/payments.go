package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

// PaymentFlow drives the tipping and post-unlock flows against the payment
// processor. Subscription billing runs entirely through webhooks outside
// this client; only one-off intents are created here.
type PaymentFlow struct {
	processor ports.PaymentProcessor
	docs      ports.DocumentStore
	logger    *slog.Logger
	currency  string
	nowFn     func() time.Time
}

type PaymentFlowDeps struct {
	Processor       ports.PaymentProcessor
	Documents       ports.DocumentStore
	Logger          *slog.Logger
	DefaultCurrency string
}

func NewPaymentFlow(deps PaymentFlowDeps) *PaymentFlow {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := deps.DefaultCurrency
	if currency == "" {
		currency = "usd"
	}
	return &PaymentFlow{
		processor: deps.Processor,
		docs:      deps.Documents,
		logger:    logger,
		currency:  currency,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

type TipInput struct {
	CreatorID   string
	AmountCents int64
	Currency    string
	Message     string
}

func (f *PaymentFlow) CreateTip(ctx context.Context, userID string, in TipInput) (ports.PaymentIntent, error) {
	if strings.TrimSpace(userID) == "" {
		return ports.PaymentIntent{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(in.CreatorID) == "" || in.AmountCents <= 0 {
		return ports.PaymentIntent{}, domain.ErrInvalidInput
	}
	currency := in.Currency
	if currency == "" {
		currency = f.currency
	}
	intent, err := f.processor.CreatePaymentIntent(ctx, in.AmountCents, currency, map[string]string{
		"type":       "tip",
		"user_id":    userID,
		"creator_id": in.CreatorID,
		"message":    in.Message,
	})
	if err != nil {
		return ports.PaymentIntent{}, fmt.Errorf("create tip intent: %w", err)
	}
	return intent, nil
}

func (f *PaymentFlow) UnlockPost(ctx context.Context, userID, postID string) (ports.PaymentIntent, error) {
	if strings.TrimSpace(userID) == "" {
		return ports.PaymentIntent{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(postID) == "" {
		return ports.PaymentIntent{}, domain.ErrInvalidInput
	}
	docs, err := f.docs.List(ctx, CollectionPosts, ports.Filter{"post_id": postID})
	if err != nil {
		return ports.PaymentIntent{}, fmt.Errorf("load post: %w", err)
	}
	if len(docs) == 0 {
		return ports.PaymentIntent{}, domain.ErrNotFound
	}
	raw, err := json.Marshal(docs[0].Fields)
	if err != nil {
		return ports.PaymentIntent{}, err
	}
	var post domain.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return ports.PaymentIntent{}, err
	}
	if !post.Locked || post.PriceCents <= 0 {
		return ports.PaymentIntent{}, domain.ErrInvalidInput
	}
	intent, err := f.processor.CreatePaymentIntent(ctx, post.PriceCents, f.currency, map[string]string{
		"type":       "post_unlock",
		"user_id":    userID,
		"creator_id": post.CreatorID,
		"post_id":    postID,
	})
	if err != nil {
		return ports.PaymentIntent{}, fmt.Errorf("create unlock intent: %w", err)
	}
	return intent, nil
}

func (f *PaymentFlow) Confirm(ctx context.Context, clientSecret string) error {
	if strings.TrimSpace(clientSecret) == "" {
		return domain.ErrInvalidInput
	}
	if err := f.processor.ConfirmPayment(ctx, clientSecret); err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	return nil
}
