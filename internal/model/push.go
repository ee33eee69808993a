package model

import "time"

// Notification kinds sent over web push.
const (
	NotifSwapRequested = "swap_requested"
	NotifSwapResolved  = "swap_resolved"
	NotifRequestFiled  = "request_filed"
	NotifRequestUpdate = "request_updated"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
