package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// SubscriptionRecord mirrors one row of the remote subscriptions collection.
// Several records may share one StripeSubscriptionID (a cancellation row next
// to the original active row); they transition together.
type SubscriptionRecord struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	CreatorID            string             `json:"creator_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	Status               SubscriptionStatus `json:"status"`
	PlanAmountCents      int64              `json:"plan_amount_cents"`
	PlanInterval         string             `json:"plan_interval"`
	PlanCurrency         string             `json:"plan_currency"`
	CustomerEmail        string             `json:"customer_email"`
	CreatedAt            time.Time          `json:"created_at"`
	RenewalDate          time.Time          `json:"renewal_date"`
	EndsAt               *time.Time         `json:"ends_at,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
}

type Profile struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	IsCreator   bool      `json:"is_creator"`
	CreatedAt   time.Time `json:"created_at"`
}

type Post struct {
	PostID       string    `json:"post_id"`
	CreatorID    string    `json:"creator_id"`
	Caption      string    `json:"caption"`
	MediaURL     string    `json:"media_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Locked       bool      `json:"locked"`
	PriceCents   int64     `json:"price_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// CacheEntry maps a remote media URL to its durable local file. Entries are
// never mutated; they disappear only on explicit cache clear or OS eviction.
type CacheEntry struct {
	SourceURL string `json:"source_url"`
	CacheKey  string `json:"cache_key"`
	LocalPath string `json:"local_path"`
}

// CacheKey returns a deterministic key for a media URL, stable across process
// restarts. Collision tolerance within a single device cache is sufficient,
// so the digest is truncated.
func CacheKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:20]
}

type ConnectionPhase string

const (
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseConnected    ConnectionPhase = "connected"
)

// ConnectionState is the single explicit chat connection value. Identity is
// empty while disconnected. No two identities are ever connected at once; a
// switch always passes through disconnected.
type ConnectionState struct {
	Phase    ConnectionPhase `json:"phase"`
	Identity string          `json:"identity,omitempty"`
}

func (s ConnectionState) ConnectedAs(identity string) bool {
	return s.Phase == PhaseConnected && s.Identity == identity
}

type ChannelKind string

const (
	ChannelKindGroup         ChannelKind = "group"
	ChannelKindDirectMessage ChannelKind = "direct_message"
)

type ChannelDescriptor struct {
	ID      string      `json:"id"`
	Kind    ChannelKind `json:"kind"`
	Members []string    `json:"members"`
}
