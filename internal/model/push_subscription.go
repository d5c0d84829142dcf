package model

import "time"

// PushSubscription holds the information for an operator browser's push subscription.
// An empty GroupLabel receives alerts for every group.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey"`
	P256DH     string    `gorm:"column:p256dh;not null"`
	Auth       string    `gorm:"not null"`
	GroupLabel string    `gorm:"size:256;index;not null;default:''"`
	StationID  string    `gorm:"size:64"`
	CreatedAt  time.Time `gorm:"not null"`
}
