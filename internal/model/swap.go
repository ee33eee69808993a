package model

import "time"

const (
	SwapPending   = "pending"
	SwapApproved  = "approved"
	SwapRejected  = "rejected"
	SwapCancelled = "cancelled"
	SwapExpired   = "expired"
)

type SwapRequest struct {
	ID          int64      `json:"id"`
	ScheduleID  int64      `json:"schedule_id"`
	RequesterID int64      `json:"requester_id"`
	TargetID    int64      `json:"target_id"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	RespondedAt *time.Time `json:"responded_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
