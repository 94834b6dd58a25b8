package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type LoginRequest struct {
	Identity  string `json:"identity"`
	ChatToken string `json:"chat_token"`
}

type SessionResponse struct {
	Identity      string                 `json:"identity,omitempty"`
	Connection    ConnectionResponse     `json:"connection"`
	Profile       *ProfileResponse       `json:"profile,omitempty"`
	Posts         []PostResponse         `json:"posts"`
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
}

type ConnectionResponse struct {
	Phase    string `json:"phase"`
	Identity string `json:"identity,omitempty"`
}

type ProfileResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	IsCreator   bool   `json:"is_creator"`
}

type PostResponse struct {
	PostID       string `json:"post_id"`
	CreatorID    string `json:"creator_id"`
	Caption      string `json:"caption"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Locked       bool   `json:"locked"`
	PriceCents   int64  `json:"price_cents"`
	CreatedAt    string `json:"created_at"`
}

type SubscriptionResponse struct {
	ID                   string `json:"id"`
	CreatorID            string `json:"creator_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	Status               string `json:"status"`
	EndsAt               string `json:"ends_at,omitempty"`
	RenewalDate          string `json:"renewal_date"`
}

type SubscriptionStatusResponse struct {
	CreatorID string `json:"creator_id"`
	State     string `json:"state"`
	HasAccess bool   `json:"has_access"`
}

type SweepResponse struct {
	ArchivedCount int `json:"archived_count"`
}

type ResolveMediaResponse struct {
	SourceURL string `json:"source_url"`
	Resolved  string `json:"resolved"`
	Cached    bool   `json:"cached"`
}

type PreloadRequest struct {
	URLs []string `json:"urls"`
}

type PreloadResponse struct {
	Cached int      `json:"cached"`
	Failed []string `json:"failed"`
}

type TipRequest struct {
	CreatorID   string `json:"creator_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Message     string `json:"message,omitempty"`
}

type UnlockRequest struct {
	PostID string `json:"post_id"`
}

type ConfirmPaymentRequest struct {
	ClientSecret string `json:"client_secret"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	AccountID    string `json:"account_id"`
}
