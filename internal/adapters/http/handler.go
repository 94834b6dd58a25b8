package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/application"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/contracts"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
)

type Handler struct {
	session  *application.Session
	subs     *application.SubscriptionManager
	images   *application.ImageCache
	payments *application.PaymentFlow
}

func NewHandler(session *application.Session, subs *application.SubscriptionManager, images *application.ImageCache, payments *application.PaymentFlow) *Handler {
	return &Handler{session: session, subs: subs, images: images, payments: payments}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req contracts.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	if err := h.session.SwitchIdentity(r.Context(), req.Identity, req.ChatToken); err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "session started", toSessionResponse(h.session.Snapshot()))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "session ended", nil)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "session", toSessionResponse(h.session.Snapshot()))
}

func (h *Handler) resolveMedia(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "url query parameter is required", requestIDFromContext(r.Context()))
		return
	}
	resolved := h.images.Resolve(url)
	writeSuccess(w, http.StatusOK, "media resolved", contracts.ResolveMediaResponse{
		SourceURL: url,
		Resolved:  resolved,
		Cached:    resolved != url,
	})
}

func (h *Handler) preloadMedia(w http.ResponseWriter, r *http.Request) {
	var req contracts.PreloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	cached, failed := h.images.Preload(r.Context(), req.URLs)
	writeSuccess(w, http.StatusOK, "preload finished", contracts.PreloadResponse{Cached: cached, Failed: failed})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap.Identity == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session", requestIDFromContext(r.Context()))
		return
	}
	recs, err := h.subs.ListActive(r.Context(), snap.Identity)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out := make([]contracts.SubscriptionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSubscriptionResponse(rec))
	}
	writeSuccess(w, http.StatusOK, "subscriptions", out)
}

func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap.Identity == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session", requestIDFromContext(r.Context()))
		return
	}
	creatorID := chi.URLParam(r, "creator_id")
	state, err := h.subs.Status(r.Context(), snap.Identity, creatorID)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "subscription status", contracts.SubscriptionStatusResponse{
		CreatorID: creatorID,
		State:     string(state),
		HasAccess: state.GrantsAccess(),
	})
}

func (h *Handler) sweepSubscriptions(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap.Identity == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session", requestIDFromContext(r.Context()))
		return
	}
	count, err := h.subs.SweepExpired(r.Context(), snap.Identity)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "sweep finished", contracts.SweepResponse{ArchivedCount: count})
}

func (h *Handler) createTip(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	var req contracts.TipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	intent, err := h.payments.CreateTip(r.Context(), snap.Identity, application.TipInput{
		CreatorID:   req.CreatorID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Message:     req.Message,
	})
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "tip intent created", contracts.PaymentIntentResponse{ClientSecret: intent.ClientSecret, AccountID: intent.AccountID})
}

func (h *Handler) unlockPost(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	var req contracts.UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	intent, err := h.payments.UnlockPost(r.Context(), snap.Identity, req.PostID)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "unlock intent created", contracts.PaymentIntentResponse{ClientSecret: intent.ClientSecret, AccountID: intent.AccountID})
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	if err := h.payments.Confirm(r.Context(), req.ClientSecret); err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "payment confirmed", nil)
}

func toSessionResponse(snap application.SessionSnapshot) contracts.SessionResponse {
	resp := contracts.SessionResponse{
		Identity: snap.Identity,
		Connection: contracts.ConnectionResponse{
			Phase:    string(snap.Connection.Phase),
			Identity: snap.Connection.Identity,
		},
		Posts:         make([]contracts.PostResponse, 0, len(snap.Posts)),
		Subscriptions: make([]contracts.SubscriptionResponse, 0, len(snap.Subscriptions)),
	}
	if snap.Profile != nil {
		resp.Profile = &contracts.ProfileResponse{
			UserID:      snap.Profile.UserID,
			Username:    snap.Profile.Username,
			DisplayName: snap.Profile.DisplayName,
			Bio:         snap.Profile.Bio,
			AvatarURL:   snap.Profile.AvatarURL,
			IsCreator:   snap.Profile.IsCreator,
		}
	}
	for _, post := range snap.Posts {
		resp.Posts = append(resp.Posts, contracts.PostResponse{
			PostID:       post.PostID,
			CreatorID:    post.CreatorID,
			Caption:      post.Caption,
			MediaURL:     post.MediaURL,
			ThumbnailURL: post.ThumbnailURL,
			Locked:       post.Locked,
			PriceCents:   post.PriceCents,
			CreatedAt:    post.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, rec := range snap.Subscriptions {
		resp.Subscriptions = append(resp.Subscriptions, toSubscriptionResponse(rec))
	}
	return resp
}

func toSubscriptionResponse(rec domain.SubscriptionRecord) contracts.SubscriptionResponse {
	out := contracts.SubscriptionResponse{
		ID:                   rec.ID,
		CreatorID:            rec.CreatorID,
		StripeSubscriptionID: rec.StripeSubscriptionID,
		Status:               string(rec.Status),
		RenewalDate:          rec.RenewalDate.UTC().Format(time.RFC3339),
	}
	if rec.EndsAt != nil {
		out.EndsAt = rec.EndsAt.UTC().Format(time.RFC3339)
	}
	return out
}
