package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/contracts"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

const (
	CollectionUsers = "users"
	CollectionPosts = "posts"
)

type SessionConfig struct {
	ServiceName         string
	ContentListingLimit int
	PreloadThumbnails   int
}

// Session sequences the work around an identity change and owns the unified
// read model handed to the UI: current identity, profile, content listing,
// subscriptions and chat connectivity. Background tasks are not cancellable;
// instead every write back into the read model checks the session generation
// so a fast identity switch simply drops stale results.
type Session struct {
	cfg    SessionConfig
	chat   *ChatManager
	subs   *SubscriptionManager
	images *ImageCache
	docs   ports.DocumentStore
	events ports.EventPublisher
	logger *slog.Logger
	nowFn  func() time.Time

	mu            sync.Mutex
	generation    uint64
	identity      string
	profile       *domain.Profile
	posts         []domain.Post
	subscriptions []domain.SubscriptionRecord
}

type SessionDeps struct {
	Config    SessionConfig
	Chat      *ChatManager
	Subs      *SubscriptionManager
	Images    *ImageCache
	Documents ports.DocumentStore
	Events    ports.EventPublisher
	Logger    *slog.Logger
}

func NewSession(deps SessionDeps) *Session {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cherrizbox-syncd"
	}
	if cfg.ContentListingLimit <= 0 {
		cfg.ContentListingLimit = 50
	}
	if cfg.PreloadThumbnails <= 0 {
		cfg.PreloadThumbnails = 12
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		chat:   deps.Chat,
		subs:   deps.Subs,
		images: deps.Images,
		docs:   deps.Documents,
		events: deps.Events,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SessionSnapshot is the read model consumers see. Slices are copies; the
// caller may keep them across identity switches.
type SessionSnapshot struct {
	Identity      string
	Connection    domain.ConnectionState
	Profile       *domain.Profile
	Posts         []domain.Post
	Subscriptions []domain.SubscriptionRecord
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		Identity:      s.identity,
		Connection:    s.chat.State(),
		Posts:         append([]domain.Post(nil), s.posts...),
		Subscriptions: append([]domain.SubscriptionRecord(nil), s.subscriptions...),
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

func (s *Session) ResolveMedia(url string) string {
	return s.images.Resolve(url)
}

// SwitchIdentity runs the full login sequence: disconnect the previous chat
// identity, connect the new one, load subscriptions, profile and content in
// parallel, then kick off the sweep, channel provisioning and image preload
// in the background. A connect failure surfaces synchronously and leaves the
// connection Disconnected; the caller retries explicitly.
func (s *Session) SwitchIdentity(ctx context.Context, identity, chatToken string) error {
	if identity == "" {
		return domain.ErrInvalidInput
	}
	gen := s.begin(identity)

	if err := s.chat.Connect(ctx, identity, chatToken); err != nil {
		// A failed login is no session at all; leaving the identity set
		// would have the read model report a half-open session.
		s.applyIfCurrent(gen, func() { s.identity = "" })
		return err
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		recs, err := s.subs.ListActive(ctx, identity)
		if err != nil {
			s.logger.WarnContext(ctx, "subscription load failed", "identity", identity, "error", err)
			return
		}
		s.applyIfCurrent(gen, func() { s.subscriptions = recs })
	}()
	go func() {
		defer wg.Done()
		profile, err := s.loadProfile(ctx, identity)
		if err != nil {
			s.logger.WarnContext(ctx, "profile load failed", "identity", identity, "error", err)
			return
		}
		s.applyIfCurrent(gen, func() { s.profile = profile })
	}()
	go func() {
		defer wg.Done()
		posts, err := s.loadPosts(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "content load failed", "identity", identity, "error", err)
			return
		}
		s.applyIfCurrent(gen, func() { s.posts = posts })
	}()
	wg.Wait()

	if !s.stillCurrent(gen) {
		return nil
	}
	snap := s.Snapshot()

	go s.sweepInBackground(gen, identity)
	go s.provisionInBackground(gen, identity, counterpartIDs(snap.Subscriptions))
	// Both the profile and the content listing are settled at this point,
	// so the preload set is complete.
	go s.preloadInBackground(gen, preloadURLs(snap, s.cfg.PreloadThumbnails))

	s.publish(ctx, "session.started", identity, contracts.SessionStartedPayload{
		Identity:          identity,
		SubscriptionCount: len(snap.Subscriptions),
		StartedAt:         s.nowFn().Format(time.RFC3339),
	})
	return nil
}

// Logout clears every in-memory cache, empties the media manifest and
// returns the connection to Disconnected.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	identity := s.identity
	s.identity = ""
	s.profile = nil
	s.posts = nil
	s.subscriptions = nil
	s.mu.Unlock()

	if err := s.chat.Disconnect(ctx); err != nil {
		s.logger.WarnContext(ctx, "disconnect on logout failed", "error", err)
	}
	cleared, err := s.images.Clear(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "media cache clear failed", "error", err)
	}
	if identity != "" {
		s.publish(ctx, "session.ended", identity, contracts.SessionEndedPayload{
			Identity: identity,
			EndedAt:  s.nowFn().Format(time.RFC3339),
		})
		s.publish(ctx, "media.cache_cleared", identity, contracts.MediaCacheClearedPayload{
			Identity:     identity,
			EntryCount:   cleared,
			ClearedAt:    s.nowFn().Format(time.RFC3339),
			ClearedCause: "logout",
		})
	}
	return nil
}

func (s *Session) begin(identity string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.identity = identity
	s.profile = nil
	s.posts = nil
	s.subscriptions = nil
	return s.generation
}

func (s *Session) stillCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Session) applyIfCurrent(gen uint64, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	apply()
}

func (s *Session) loadProfile(ctx context.Context, identity string) (*domain.Profile, error) {
	docs, err := s.docs.List(ctx, CollectionUsers, ports.Filter{"user_id": identity})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	raw, err := json.Marshal(docs[0].Fields)
	if err != nil {
		return nil, err
	}
	var profile domain.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		profile.UserID = docs[0].ID
	}
	return &profile, nil
}

func (s *Session) loadPosts(ctx context.Context) ([]domain.Post, error) {
	docs, err := s.docs.List(ctx, CollectionPosts, nil)
	if err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0, len(docs))
	for _, doc := range docs {
		raw, marshalErr := json.Marshal(doc.Fields)
		if marshalErr != nil {
			continue
		}
		var post domain.Post
		if json.Unmarshal(raw, &post) != nil {
			continue
		}
		if post.PostID == "" {
			post.PostID = doc.ID
		}
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	if len(posts) > s.cfg.ContentListingLimit {
		posts = posts[:s.cfg.ContentListingLimit]
	}
	return posts, nil
}

func (s *Session) sweepInBackground(gen uint64, identity string) {
	ctx := context.Background()
	count, err := s.subs.SweepExpired(ctx, identity)
	if err != nil {
		s.logger.WarnContext(ctx, "subscription sweep failed", "identity", identity, "error", err)
		return
	}
	if !s.stillCurrent(gen) || count == 0 {
		return
	}
	// Archived rows are gone from the live store; refresh the read model so
	// the UI does not keep granting access off a swept record.
	recs, err := s.subs.ListActive(ctx, identity)
	if err != nil {
		return
	}
	s.applyIfCurrent(gen, func() { s.subscriptions = recs })
}

func (s *Session) provisionInBackground(gen uint64, identity string, counterparts []string) {
	if len(counterparts) == 0 {
		return
	}
	ctx := context.Background()
	result := s.chat.ProvisionChannels(ctx, identity, counterparts)
	if !s.stillCurrent(gen) {
		return
	}
	if len(result.Failed) > 0 {
		s.logger.WarnContext(ctx, "channel provisioning partial failure",
			"identity", identity,
			"successful", len(result.Successful),
			"failed", result.Failed,
		)
		return
	}
	s.logger.InfoContext(ctx, "channels provisioned", "identity", identity, "count", len(result.Successful))
}

func (s *Session) preloadInBackground(gen uint64, urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx := context.Background()
	cached, failed := s.images.Preload(ctx, urls)
	if !s.stillCurrent(gen) {
		return
	}
	if len(failed) > 0 {
		s.logger.WarnContext(ctx, "media preload partial failure", "cached", cached, "failed", failed)
		return
	}
	s.logger.InfoContext(ctx, "media preloaded", "count", cached)
}

func (s *Session) publish(ctx context.Context, eventType, partitionKey string, payload any) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	envelope, err := json.Marshal(contracts.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    s.nowFn(),
		PartitionKey:  partitionKey,
		SourceService: s.cfg.ServiceName,
		SchemaVersion: "1.0",
		Data:          data,
	})
	if err != nil {
		return
	}
	if pubErr := s.events.Publish(ctx, eventType, envelope, partitionKey); pubErr != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", eventType, "error", pubErr)
	}
}

func counterpartIDs(recs []domain.SubscriptionRecord) []string {
	seen := make(map[string]struct{}, len(recs))
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		if rec.CreatorID == "" {
			continue
		}
		if _, ok := seen[rec.CreatorID]; ok {
			continue
		}
		seen[rec.CreatorID] = struct{}{}
		ids = append(ids, rec.CreatorID)
	}
	sort.Strings(ids)
	return ids
}

func preloadURLs(snap SessionSnapshot, maxThumbnails int) []string {
	urls := make([]string, 0, maxThumbnails+1)
	if snap.Profile != nil && snap.Profile.AvatarURL != "" {
		urls = append(urls, snap.Profile.AvatarURL)
	}
	for i, post := range snap.Posts {
		if i >= maxThumbnails {
			break
		}
		if post.ThumbnailURL != "" {
			urls = append(urls, post.ThumbnailURL)
		}
	}
	return urls
}
