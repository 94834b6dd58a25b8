package domain

import "time"

type AccessState string

const (
	AccessNone                AccessState = "none"
	AccessActive              AccessState = "active"
	AccessPendingCancellation AccessState = "pending_cancellation"
	AccessExpired             AccessState = "expired"
)

// GrantsAccess reports whether the state still entitles the subscriber to
// content. A pending cancellation keeps access until its end date passes.
func (s AccessState) GrantsAccess() bool {
	return s == AccessActive || s == AccessPendingCancellation
}

// ClassifyRecord maps a single subscription record onto the access taxonomy
// at the given instant. A record is effectively active only while its status
// is active and its end date is absent or in the future.
func ClassifyRecord(rec SubscriptionRecord, now time.Time) AccessState {
	ended := rec.EndsAt != nil && !rec.EndsAt.After(now)
	switch rec.Status {
	case SubscriptionStatusActive:
		if ended {
			return AccessExpired
		}
		return AccessActive
	case SubscriptionStatusCancelled:
		if ended {
			return AccessExpired
		}
		if rec.EndsAt != nil {
			return AccessPendingCancellation
		}
		return AccessExpired
	default:
		return AccessNone
	}
}

// ClassifyRecords folds a set of records for one (user, creator) pair into
// the strongest access state. Multiple active rows per pair are structurally
// possible and tolerated.
func ClassifyRecords(recs []SubscriptionRecord, now time.Time) AccessState {
	best := AccessNone
	for _, rec := range recs {
		state := ClassifyRecord(rec, now)
		if rank(state) > rank(best) {
			best = state
		}
	}
	return best
}

func rank(s AccessState) int {
	switch s {
	case AccessActive:
		return 3
	case AccessPendingCancellation:
		return 2
	case AccessExpired:
		return 1
	default:
		return 0
	}
}

// IsExpiredActive selects the sweep candidates: active rows whose end date
// has passed.
func IsExpiredActive(rec SubscriptionRecord, now time.Time) bool {
	return rec.Status == SubscriptionStatusActive && rec.EndsAt != nil && !rec.EndsAt.After(now)
}
