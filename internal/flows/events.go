package flows

import (
	"context"
	"sort"
	"time"
)

// SecurityEventKind names one entry of a user's session history.
type SecurityEventKind string

const (
	SecurityEventIssued  SecurityEventKind = "Refresh token issued"
	SecurityEventRevoked SecurityEventKind = "Session revoked"
	SecurityEventRotated SecurityEventKind = "Token rotated"
)

// SecurityEvent is one flattened entry derived from a refresh record.
type SecurityEvent struct {
	Kind      SecurityEventKind
	At        time.Time
	RecordID  string
	UserAgent string
	IP        string
}

// EventsDeps captures security event dependencies.
type EventsDeps struct {
	Ledger RefreshLedger
	Limit  int
}

// RunSecurityEvents reads the newest refresh records and flattens each into
// an issued entry plus, when applicable, a revoked and a rotated entry. The
// combined list is sorted newest first and capped at Limit.
func RunSecurityEvents(ctx context.Context, userID string, deps EventsDeps) ([]SecurityEvent, error) {
	if userID == "" {
		return nil, ErrMissingFields
	}

	records, err := deps.Ledger.History(ctx, userID, deps.Limit)
	if err != nil {
		return nil, err
	}

	events := make([]SecurityEvent, 0, len(records)*2)
	for _, rec := range records {
		events = append(events, SecurityEvent{
			Kind:      SecurityEventIssued,
			At:        rec.CreatedAt,
			RecordID:  rec.ID,
			UserAgent: rec.UserAgent,
			IP:        rec.IP,
		})
		if rec.Revoked {
			events = append(events, SecurityEvent{
				Kind:      SecurityEventRevoked,
				At:        rec.UpdatedAt,
				RecordID:  rec.ID,
				UserAgent: rec.UserAgent,
				IP:        rec.IP,
			})
		}
		if rec.ReplacedByTokenHash != "" {
			events = append(events, SecurityEvent{
				Kind:      SecurityEventRotated,
				At:        rec.UpdatedAt,
				RecordID:  rec.ID,
				UserAgent: rec.UserAgent,
				IP:        rec.IP,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})
	if deps.Limit > 0 && len(events) > deps.Limit {
		events = events[:deps.Limit]
	}
	return events, nil
}
