package model

import "strings"

// EntrantState is the position an entrant holds in an event's lifecycle.
type EntrantState string

const (
	StateWaitlisted  EntrantState = "WAITLISTED"
	StateSelected    EntrantState = "SELECTED"
	StateNonSelected EntrantState = "NON_SELECTED"
	StateCancelled   EntrantState = "CANCELLED"
	StateAdmitted    EntrantState = "ADMITTED"
)

// States lists every entrant state in lifecycle order.
var States = []EntrantState{
	StateWaitlisted,
	StateSelected,
	StateNonSelected,
	StateCancelled,
	StateAdmitted,
}

// Terminal reports whether no further transition leaves the state.
func (s EntrantState) Terminal() bool {
	return s == StateCancelled || s == StateAdmitted
}

// Valid reports whether s is one of the known states.
func (s EntrantState) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// ParseEntrantState converts a stored label to a state, returning "" when unknown.
func ParseEntrantState(label string) EntrantState {
	s := EntrantState(strings.ToUpper(strings.TrimSpace(label)))
	if !s.Valid() {
		return ""
	}
	return s
}

// transition is one allowed edge of the entrant lifecycle. An empty From means
// the entrant has no row yet.
type transition struct {
	From EntrantState
	To   EntrantState
}

var transitions = []transition{
	// join and direct admission
	{From: "", To: StateWaitlisted},
	{From: "", To: StateAdmitted},
	// draw
	{From: StateWaitlisted, To: StateSelected},
	{From: StateWaitlisted, To: StateNonSelected},
	{From: StateWaitlisted, To: StateAdmitted},
	// replacement, opt-out, direct admission
	{From: StateNonSelected, To: StateSelected},
	{From: StateNonSelected, To: StateCancelled},
	{From: StateNonSelected, To: StateAdmitted},
	// accept, decline, expiry
	{From: StateSelected, To: StateAdmitted},
	{From: StateSelected, To: StateCancelled},
}

// CanTransition reports whether an entrant may move from one state to another.
// Cancelled and Admitted are terminal; nothing ever returns to NonSelected or
// Waitlisted.
func CanTransition(from, to EntrantState) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
