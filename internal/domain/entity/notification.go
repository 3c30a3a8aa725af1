package entity

import (
	"time"
)

// NotificationKind tags the category of a scheduled message.
type NotificationKind string

const (
	KindVerification      NotificationKind = "verification"
	KindEligibilityResult NotificationKind = "eligibility_result"
	KindFollowupFirst     NotificationKind = "followup_first"
	KindFollowupFinal     NotificationKind = "followup_final"
)

// NotificationStatus is the delivery state of a notification.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSending   NotificationStatus = "sending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// Notification is one scheduled outbound message. FlightID is nil for
// verification notices.
type Notification struct {
	ID           string             `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"userId" json:"userId"`
	FlightID     *string            `bson:"flightId,omitempty" json:"flightId,omitempty"`
	Kind         NotificationKind   `bson:"kind" json:"kind"`
	ScheduledFor time.Time          `bson:"scheduledFor" json:"scheduledFor"`
	Status       NotificationStatus `bson:"status" json:"status"`
	SentAt       *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	ExternalID   string             `bson:"externalId,omitempty" json:"externalId,omitempty"`
	LastError    string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	ClaimedAt    *time.Time         `bson:"claimedAt,omitempty" json:"-"`
	// DedupeKey is present on every non-cancelled record and backed by a
	// unique sparse index.
	DedupeKey string    `bson:"dedupeKey,omitempty" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DedupeKeyFor returns the uniqueness key of a (flight, kind) pair, or of
// the user's verification notice when flightID is empty.
func DedupeKeyFor(userID, flightID string, kind NotificationKind) string {
	if flightID == "" {
		return "user:" + userID + ":" + string(kind)
	}
	return "flight:" + flightID + ":" + string(kind)
}

// DueCursor is a position in due-selection order (scheduledFor, then id).
type DueCursor struct {
	ScheduledFor time.Time
	ID           string
}

// Cursor returns the selection position just after n.
func (n *Notification) Cursor() *DueCursor {
	return &DueCursor{ScheduledFor: n.ScheduledFor, ID: n.ID}
}

// After reports whether n sorts strictly after c. A nil cursor precedes everything.
func (c *DueCursor) After(n *Notification) bool {
	if c == nil {
		return true
	}
	if !n.ScheduledFor.Equal(c.ScheduledFor) {
		return n.ScheduledFor.After(c.ScheduledFor)
	}
	return n.ID > c.ID
}

// BatchResult summarises one dispatcher run.
type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
