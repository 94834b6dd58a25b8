package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SourceService string          `json:"source_service"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

type SessionStartedPayload struct {
	Identity          string `json:"identity"`
	SubscriptionCount int    `json:"subscription_count"`
	StartedAt         string `json:"started_at"`
}

type SessionEndedPayload struct {
	Identity string `json:"identity"`
	EndedAt  string `json:"ended_at"`
}

type SubscriptionsArchivedPayload struct {
	UserID        string   `json:"user_id"`
	ArchivedCount int      `json:"archived_count"`
	BillingIDs    []string `json:"billing_ids"`
	SweptAt       string   `json:"swept_at"`
}

type MediaCacheClearedPayload struct {
	Identity     string `json:"identity,omitempty"`
	EntryCount   int    `json:"entry_count"`
	ClearedAt    string `json:"cleared_at"`
	ClearedCause string `json:"cleared_cause"`
}
