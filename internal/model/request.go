package model

import "time"

const (
	RequestSupply      = "supply"
	RequestMaintenance = "maintenance"
	RequestConcern     = "concern"
)

const (
	RequestOpen     = "open"
	RequestApproved = "approved"
	RequestDenied   = "denied"
	RequestResolved = "resolved"
)

type Request struct {
	ID              int64      `json:"id"`
	TenantID        int64      `json:"tenant_id"`
	Kind            string     `json:"kind"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AboutOccupantID *int64     `json:"about_occupant_id"`
	Status          string     `json:"status"`
	AdminNotes      string     `json:"admin_notes"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
