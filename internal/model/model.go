// Package model defines the core domain types for the event waitlist system.
package model

// Event represents a lottery-style event created by an organizer.
// All timestamps are Unix epoch milliseconds.
type Event struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description,omitempty"`
	Location              string `json:"location,omitempty"`
	OrganizerID           string `json:"organizer_id"`
	Capacity              int    `json:"capacity"`
	SampleSize            int    `json:"sample_size"`
	RegistrationStart     int64  `json:"registration_start"`
	RegistrationEnd       int64  `json:"registration_end"`
	DeadlineEpochMs       int64  `json:"deadline_epoch_ms"`
	StartsAtEpochMs       int64  `json:"starts_at_epoch_ms"`
	SelectionProcessed    bool   `json:"selection_processed"`
	SorryNotificationSent bool   `json:"sorry_notification_sent"`
	WaitlistCount         int    `json:"waitlist_count"`
	CreatedAtEpochMs      int64  `json:"created_at_epoch_ms"`
}

// Unlimited reports whether the event admits any number of entrants.
func (e *Event) Unlimited() bool {
	return e.Capacity <= 0
}

// RegistrationOpen reports whether now falls inside the join window.
func (e *Event) RegistrationOpen(now int64) bool {
	return now >= e.RegistrationStart && now <= e.RegistrationEnd
}

// Started reports whether the event has a start time that is already in the past.
func (e *Event) Started(now int64) bool {
	return e.StartsAtEpochMs > 0 && now >= e.StartsAtEpochMs
}

// Entrant is one user's position within an event. The (EventID, UID) pair is
// unique, so an entrant occupies exactly one state per event.
type Entrant struct {
	EventID   string       `json:"event_id"`
	UID       string       `json:"uid"`
	State     EntrantState `json:"state"`
	JoinedAt  int64        `json:"joined_at"`
	UpdatedAt int64        `json:"updated_at"`
}

// Partition lists the members of each entrant state for one event.
type Partition struct {
	EventID     string   `json:"event_id"`
	Waitlisted  []string `json:"waitlisted"`
	Selected    []string `json:"selected"`
	NonSelected []string `json:"non_selected"`
	Cancelled   []string `json:"cancelled"`
	Admitted    []string `json:"admitted"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Location          string `json:"location"`
	Capacity          int    `json:"capacity"`
	SampleSize        int    `json:"sample_size"`
	RegistrationStart int64  `json:"registration_start"`
	RegistrationEnd   int64  `json:"registration_end"`
	DeadlineEpochMs   int64  `json:"deadline_epoch_ms"`
	StartsAtEpochMs   int64  `json:"starts_at_epoch_ms"`
}

// RespondRequest is the payload for accepting or declining an invitation.
type RespondRequest struct {
	EventID string `json:"event_id"`
}

// ReplaceRequest is the payload for promoting replacement entrants.
type ReplaceRequest struct {
	Count           int   `json:"count"`
	DeadlineEpochMs int64 `json:"deadline_epoch_ms"`
}

// AdmitRequest is the payload for a direct admission by the organizer.
type AdmitRequest struct {
	UID string `json:"uid"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WaitlistCount is the externally visible waitlist size of an event.
type WaitlistCount struct {
	EventID string `json:"event_id"`
	Count   int    `json:"count"`
}

// Membership summarises where the caller stands for one event.
type Membership struct {
	EventID  string       `json:"event_id"`
	Joined   bool         `json:"joined"`
	Admitted bool         `json:"admitted"`
	State    EntrantState `json:"state,omitempty"`
}
