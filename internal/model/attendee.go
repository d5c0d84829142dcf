package model

// Attendee is one expected participant as resolved from a roster row.
// Attendees are never persisted; a roster import replaces them wholesale.
type Attendee struct {
	ID             string `json:"attendeeId"`
	DisplayName    string `json:"displayName"`
	GroupLabel     string `json:"groupLabel"`
	SeatID         string `json:"seatId"`
	CredentialCode string `json:"credentialCode"`
	PhotoRef       string `json:"photoRef,omitempty"`
}
