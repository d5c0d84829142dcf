package model

import "time"

// Notification is a check-in surfaced to operators because it happened elsewhere.
type Notification struct {
	ID             string    `json:"id"`
	AttendeeID     string    `json:"attendeeId"`
	DisplayName    string    `json:"displayName"`
	GroupLabel     string    `json:"groupLabel"`
	SeatID         string    `json:"seatId"`
	CredentialCode string    `json:"credentialCode"`
	CheckedInAt    time.Time `json:"checkedInAt"`
	RaisedAt       time.Time `json:"raisedAt"`
}
