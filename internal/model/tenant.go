package model

import "time"

type Tenant struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoomID     int64     `json:"room_id"`
	Active     bool      `json:"active"`
	MoveInDate string    `json:"move_in_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	UnitID int64  `json:"unit_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Occupant is a person in a tenant's household with one weekly chore day
// (0=Sunday..6=Saturday). UnitID and UserID are resolved through the tenant.
type Occupant struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	ChoreDay  int       `json:"chore_day"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID int64 `json:"user_id"`
	UnitID int64 `json:"unit_id"`
}

type Lease struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	Version     int       `json:"version"`
	DocumentKey string    `json:"document_key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	UploadedBy  *int64    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
