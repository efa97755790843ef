package model

import "strings"

// InvitationStatus represents the lifecycle status of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Terminal reports whether the status can no longer change.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// ParseInvitationStatus converts a stored label to a status, returning "" when unknown.
func ParseInvitationStatus(label string) InvitationStatus {
	switch s := InvitationStatus(strings.ToUpper(strings.TrimSpace(label))); s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationExpired:
		return s
	default:
		return ""
	}
}

// Invitation is an offer of admission to a selected entrant.
type Invitation struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	UID         string           `json:"uid"`
	Status      InvitationStatus `json:"status"`
	IssuedAt    int64            `json:"issued_at"`
	ExpiresAt   int64            `json:"expires_at"`
	RespondedAt int64            `json:"responded_at,omitempty"`
}

// IsExpired reports whether a pending invitation has passed its deadline.
// Invitations without a deadline never expire.
func IsExpired(inv Invitation, now int64) bool {
	return inv.Status == InvitationPending && inv.ExpiresAt > 0 && now > inv.ExpiresAt
}

// Active reports whether the invitation still awaits a response at now.
func (inv Invitation) Active(now int64) bool {
	return inv.Status == InvitationPending && !IsExpired(inv, now)
}
