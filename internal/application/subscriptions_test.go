package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	cacheadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/cache"
	eventadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/events"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/memory"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/contracts"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

func seedSubscription(t *testing.T, docs ports.DocumentStore, id string, fields map[string]any) {
	t.Helper()
	if _, err := docs.Create(context.Background(), CollectionSubscriptions, id, fields); err != nil {
		t.Fatalf("seed subscription %s: %v", id, err)
	}
}

func TestListActiveFiltersAndSorts(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	seedSubscription(t, docs, "sub_old", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1", "created_at": "2024-01-01T00:00:00Z",
	})
	seedSubscription(t, docs, "sub_new", map[string]any{
		"user_id": "alice", "creator_id": "c2", "status": "active",
		"stripe_subscription_id": "bill_2", "created_at": "2024-03-01T00:00:00Z",
	})
	seedSubscription(t, docs, "sub_cancelled", map[string]any{
		"user_id": "alice", "creator_id": "c3", "status": "cancelled",
		"stripe_subscription_id": "bill_3", "created_at": "2024-02-01T00:00:00Z",
	})
	seedSubscription(t, docs, "sub_other_user", map[string]any{
		"user_id": "bob", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_4", "created_at": "2024-02-15T00:00:00Z",
	})

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs})
	recs, err := mgr.ListActive(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 active records, got %d", len(recs))
	}
	if recs[0].ID != "sub_new" || recs[1].ID != "sub_old" {
		t.Fatalf("expected newest first, got %s then %s", recs[0].ID, recs[1].ID)
	}
}

func TestSweepExpiredArchivesSiblings(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	publisher := eventadapter.NewMemoryPublisher()
	// Expired active row and its cancellation sibling share one billing id.
	seedSubscription(t, docs, "sub_a", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1", "ends_at": "2024-01-01T00:00:00Z",
	})
	seedSubscription(t, docs, "sub_b", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "cancelled",
		"stripe_subscription_id": "bill_1",
	})
	seedSubscription(t, docs, "sub_live", map[string]any{
		"user_id": "alice", "creator_id": "c2", "status": "active",
		"stripe_subscription_id": "bill_2",
	})

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs, Events: publisher})
	mgr.nowFn = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	count, err := mgr.SweepExpired(context.Background(), "alice")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 archived records, got %d", count)
	}

	live, _ := docs.List(context.Background(), CollectionSubscriptions, ports.Filter{"user_id": "alice"})
	if len(live) != 1 || live[0].ID != "sub_live" {
		t.Fatalf("expected only sub_live to survive, got %v", live)
	}
	archived, _ := docs.List(context.Background(), CollectionArchiveSubscription, nil)
	if len(archived) != 2 {
		t.Fatalf("expected 2 archive copies, got %d", len(archived))
	}
	for _, doc := range archived {
		if doc.Fields["cancelled_at"] != "2024-06-01T00:00:00Z" {
			t.Fatalf("expected cancelled_at stamp on %s, got %v", doc.ID, doc.Fields["cancelled_at"])
		}
	}
	msgs := publisher.ByType("subscription.archived")
	if len(msgs) != 1 {
		t.Fatalf("expected one sweep event, got %d", len(msgs))
	}
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(msgs[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.EventID == "" || envelope.EventType != "subscription.archived" {
		t.Fatalf("expected enveloped sweep event, got %+v", envelope)
	}
	if envelope.SchemaVersion != "1.0" || envelope.SourceService == "" || envelope.PartitionKey != "alice" {
		t.Fatalf("unexpected envelope metadata: %+v", envelope)
	}
	var payload contracts.SubscriptionsArchivedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode sweep payload: %v", err)
	}
	if payload.ArchivedCount != 2 || len(payload.BillingIDs) != 1 || payload.BillingIDs[0] != "bill_1" {
		t.Fatalf("unexpected sweep payload: %+v", payload)
	}
}

func TestSweepExpiredConvergesAfterPartialDelete(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	seedSubscription(t, docs, "sub_a", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1", "ends_at": "2024-01-01T00:00:00Z",
	})
	// An earlier sweep copied the row but crashed before deleting it, so the
	// archive already holds a document under the same id.
	if _, err := docs.Create(context.Background(), CollectionArchiveSubscription, "sub_a", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1", "ends_at": "2024-01-01T00:00:00Z",
		"cancelled_at": "2024-05-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("seed archive copy: %v", err)
	}

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs})
	mgr.nowFn = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	count, err := mgr.SweepExpired(context.Background(), "alice")
	if err != nil {
		t.Fatalf("re-sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected re-sweep to delete the leftover row, got %d", count)
	}
	live, _ := docs.List(context.Background(), CollectionSubscriptions, ports.Filter{"user_id": "alice"})
	if len(live) != 0 {
		t.Fatalf("expected live store to drain, got %v", live)
	}
	archived, _ := docs.List(context.Background(), CollectionArchiveSubscription, nil)
	if len(archived) != 1 || archived[0].ID != "sub_a" {
		t.Fatalf("expected the existing archive copy to stand, got %v", archived)
	}
	if archived[0].Fields["cancelled_at"] != "2024-05-01T00:00:00Z" {
		t.Fatalf("expected original archive stamp preserved, got %v", archived[0].Fields["cancelled_at"])
	}
}

func TestSweepExpiredNoCandidatesIsNoop(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	seedSubscription(t, docs, "sub_live", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1",
	})

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs})
	count, err := mgr.SweepExpired(context.Background(), "alice")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing archived, got %d", count)
	}
}

type failingArchiveStore struct {
	ports.DocumentStore
}

func (s *failingArchiveStore) Create(ctx context.Context, collection, id string, fields map[string]any) (ports.Document, error) {
	if collection == CollectionArchiveSubscription {
		return ports.Document{}, fmt.Errorf("archive store offline")
	}
	return s.DocumentStore.Create(ctx, collection, id, fields)
}

func TestSweepExpiredCopyFailureLeavesLiveIntact(t *testing.T) {
	t.Parallel()

	inner := memory.NewDocumentStore()
	docs := &failingArchiveStore{DocumentStore: inner}
	seedSubscription(t, docs, "sub_a", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "active",
		"stripe_subscription_id": "bill_1", "ends_at": "2024-01-01T00:00:00Z",
	})

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs})
	mgr.nowFn = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	count, err := mgr.SweepExpired(context.Background(), "alice")
	if !errors.Is(err, domain.ErrArchiveIncomplete) {
		t.Fatalf("expected archive incomplete error, got %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no deletions on copy failure, got %d", count)
	}
	live, _ := inner.List(context.Background(), CollectionSubscriptions, nil)
	if len(live) != 1 {
		t.Fatalf("expected live row to survive failed sweep, got %d rows", len(live))
	}
}

func TestStatusClassifiesAndCaches(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	seedSubscription(t, docs, "sub_a", map[string]any{
		"user_id": "alice", "creator_id": "c1", "status": "cancelled",
		"stripe_subscription_id": "bill_1", "ends_at": "2024-12-31T00:00:00Z",
	})

	cache := cacheadapter.NewMemoryCache()
	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: docs, Cache: cache})
	mgr.nowFn = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	state, err := mgr.Status(context.Background(), "alice", "c1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state != domain.AccessPendingCancellation {
		t.Fatalf("expected pending cancellation, got %s", state)
	}
	if !state.GrantsAccess() {
		t.Fatalf("expected pending cancellation to keep access")
	}

	// Second read comes from the cache even after the store empties.
	if err := docs.Delete(context.Background(), CollectionSubscriptions, "sub_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	state, err = mgr.Status(context.Background(), "alice", "c1")
	if err != nil {
		t.Fatalf("status from cache: %v", err)
	}
	if state != domain.AccessPendingCancellation {
		t.Fatalf("expected cached state, got %s", state)
	}
}

func TestStatusUnknownPairIsNone(t *testing.T) {
	t.Parallel()

	mgr := NewSubscriptionManager(SubscriptionManagerDeps{Documents: memory.NewDocumentStore()})
	state, err := mgr.Status(context.Background(), "alice", "nobody")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state != domain.AccessNone {
		t.Fatalf("expected none, got %s", state)
	}
	subscribed, err := mgr.IsSubscribed(context.Background(), "alice", "nobody")
	if err != nil {
		t.Fatalf("is subscribed: %v", err)
	}
	if subscribed {
		t.Fatalf("expected not subscribed")
	}
}
