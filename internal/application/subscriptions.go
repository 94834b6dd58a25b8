package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/contracts"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

const (
	CollectionSubscriptions       = "subscriptions"
	CollectionArchiveSubscription = "archived_subscriptions"
)

// SubscriptionManager reads and sweeps the remote subscription collections.
// Records are created by the billing webhook and cancelled externally; this
// side only archives and deletes once an end date has passed.
type SubscriptionManager struct {
	docs        ports.DocumentStore
	cache       ports.Cache
	events      ports.EventPublisher
	logger      *slog.Logger
	serviceName string
	statusTTL   time.Duration
	nowFn       func() time.Time
}

type SubscriptionManagerDeps struct {
	Documents   ports.DocumentStore
	Cache       ports.Cache
	Events      ports.EventPublisher
	Logger      *slog.Logger
	ServiceName string
	StatusTTL   time.Duration
}

func NewSubscriptionManager(deps SubscriptionManagerDeps) *SubscriptionManager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "cherrizbox-syncd"
	}
	ttl := deps.StatusTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SubscriptionManager{
		docs:        deps.Documents,
		cache:       deps.Cache,
		events:      deps.Events,
		logger:      logger,
		serviceName: serviceName,
		statusTTL:   ttl,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// ListActive returns the user's records whose status is active, newest
// first. Effective access is decided by Status; a row here may already be
// past its end date until the next sweep.
func (m *SubscriptionManager) ListActive(ctx context.Context, userID string) ([]domain.SubscriptionRecord, error) {
	docs, err := m.docs.List(ctx, CollectionSubscriptions, ports.Filter{
		"user_id": userID,
		"status":  string(domain.SubscriptionStatusActive),
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	recs := make([]domain.SubscriptionRecord, 0, len(docs))
	for _, doc := range docs {
		rec, decodeErr := subscriptionFromDocument(doc)
		if decodeErr != nil {
			m.logger.WarnContext(ctx, "skipping undecodable subscription", "doc_id", doc.ID, "error", decodeErr)
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	return recs, nil
}

// SweepExpired archives and deletes every record belonging to a billing
// subscription that has fully ended. Cancelled sibling rows sharing a
// billing id move together with their expired active counterpart. Copies
// land in the archive before any delete runs; a failure mid-copy leaves the
// live store untouched (at-least-once over at-most-once).
func (m *SubscriptionManager) SweepExpired(ctx context.Context, userID string) (int, error) {
	docs, err := m.docs.List(ctx, CollectionSubscriptions, ports.Filter{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}
	now := m.nowFn()

	type row struct {
		doc ports.Document
		rec domain.SubscriptionRecord
	}
	rows := make([]row, 0, len(docs))
	expiredBilling := make(map[string]struct{})
	for _, doc := range docs {
		rec, decodeErr := subscriptionFromDocument(doc)
		if decodeErr != nil {
			m.logger.WarnContext(ctx, "skipping undecodable subscription", "doc_id", doc.ID, "error", decodeErr)
			continue
		}
		rows = append(rows, row{doc: doc, rec: rec})
		if domain.IsExpiredActive(rec, now) && rec.StripeSubscriptionID != "" {
			expiredBilling[rec.StripeSubscriptionID] = struct{}{}
		}
	}
	if len(expiredBilling) == 0 {
		return 0, nil
	}

	// Sibling expansion: every row sharing an expired billing id goes,
	// whatever its own status.
	selected := make([]row, 0, len(rows))
	for _, r := range rows {
		if _, ok := expiredBilling[r.rec.StripeSubscriptionID]; ok {
			selected = append(selected, r)
		}
	}

	for _, r := range selected {
		fields := make(map[string]any, len(r.doc.Fields)+1)
		for k, v := range r.doc.Fields {
			fields[k] = v
		}
		fields["cancelled_at"] = now.Format(time.RFC3339)
		if _, copyErr := m.docs.Create(ctx, CollectionArchiveSubscription, r.doc.ID, fields); copyErr != nil {
			// A copy left behind by an earlier partial sweep already satisfies
			// the archival contract; re-sweeps must converge past it.
			if errors.Is(copyErr, domain.ErrConflict) {
				continue
			}
			// Delete phase is skipped entirely; the live store stays intact.
			return 0, fmt.Errorf("%w: archive %s: %v", domain.ErrArchiveIncomplete, r.doc.ID, copyErr)
		}
	}

	deleted := 0
	for _, r := range selected {
		if delErr := m.docs.Delete(ctx, CollectionSubscriptions, r.doc.ID); delErr != nil {
			// Already archived; a leftover live row is a duplicate, not a loss.
			m.logger.WarnContext(ctx, "delete after archive failed", "doc_id", r.doc.ID, "error", delErr)
			continue
		}
		deleted++
	}

	creators := make([]string, 0, len(selected))
	for _, r := range selected {
		creators = append(creators, r.rec.CreatorID)
	}
	m.invalidateStatus(ctx, userID, creators)
	m.publishSwept(ctx, userID, deleted, expiredBilling, now)
	return deleted, nil
}

// Status classifies the user's relationship to a creator. Results are cached
// briefly; the cache is best-effort and never authoritative.
func (m *SubscriptionManager) Status(ctx context.Context, userID, creatorID string) (domain.AccessState, error) {
	key := statusCacheKey(userID, creatorID)
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, key); err == nil && cached != "" {
			return domain.AccessState(cached), nil
		}
	}
	docs, err := m.docs.List(ctx, CollectionSubscriptions, ports.Filter{
		"user_id":    userID,
		"creator_id": creatorID,
	})
	if err != nil {
		return domain.AccessNone, fmt.Errorf("list subscriptions: %w", err)
	}
	recs := make([]domain.SubscriptionRecord, 0, len(docs))
	for _, doc := range docs {
		if rec, decodeErr := subscriptionFromDocument(doc); decodeErr == nil {
			recs = append(recs, rec)
		}
	}
	state := domain.ClassifyRecords(recs, m.nowFn())
	if m.cache != nil {
		if cacheErr := m.cache.Set(ctx, key, string(state), m.statusTTL); cacheErr != nil {
			m.logger.WarnContext(ctx, "status cache set failed", "error", cacheErr)
		}
	}
	return state, nil
}

func (m *SubscriptionManager) IsSubscribed(ctx context.Context, userID, creatorID string) (bool, error) {
	state, err := m.Status(ctx, userID, creatorID)
	if err != nil {
		return false, err
	}
	return state.GrantsAccess(), nil
}

func (m *SubscriptionManager) invalidateStatus(ctx context.Context, userID string, creatorIDs []string) {
	if m.cache == nil {
		return
	}
	keys := make([]string, 0, len(creatorIDs))
	seen := make(map[string]struct{})
	for _, creatorID := range creatorIDs {
		key := statusCacheKey(userID, creatorID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}
	if err := m.cache.Delete(ctx, keys...); err != nil {
		m.logger.WarnContext(ctx, "status cache invalidation failed", "error", err)
	}
}

func (m *SubscriptionManager) publishSwept(ctx context.Context, userID string, count int, billing map[string]struct{}, at time.Time) {
	if m.events == nil || count == 0 {
		return
	}
	ids := make([]string, 0, len(billing))
	for id := range billing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(contracts.SubscriptionsArchivedPayload{
		UserID:        userID,
		ArchivedCount: count,
		BillingIDs:    ids,
		SweptAt:       at.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	envelope, err := json.Marshal(contracts.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     "subscription.archived",
		OccurredAt:    at,
		PartitionKey:  userID,
		SourceService: m.serviceName,
		SchemaVersion: "1.0",
		Data:          data,
	})
	if err != nil {
		return
	}
	if pubErr := m.events.Publish(ctx, "subscription.archived", envelope, userID); pubErr != nil {
		m.logger.WarnContext(ctx, "publish sweep event failed", "error", pubErr)
	}
}

func statusCacheKey(userID, creatorID string) string {
	return "sync:substatus:" + userID + ":" + creatorID
}

func subscriptionFromDocument(doc ports.Document) (domain.SubscriptionRecord, error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.SubscriptionRecord{}, err
	}
	var rec domain.SubscriptionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SubscriptionRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = doc.ID
	}
	return rec, nil
}
