package entity

import "time"

// User is a subscriber receiving notifications.
type User struct {
	ID                string
	Email             string
	EmailVerified     bool
	VerificationToken string
	VerifiedAt        *time.Time
	UnsubscribedAt    *time.Time
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanReceive reports whether a notification of the given kind may be sent to
// the user. Everything but the verification notice needs a verified address.
func (u *User) CanReceive(kind NotificationKind) bool {
	if u == nil || u.DeletedAt != nil || u.UnsubscribedAt != nil {
		return false
	}
	if kind == KindVerification {
		return true
	}
	return u.EmailVerified
}
