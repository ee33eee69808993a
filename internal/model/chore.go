package model

import "time"

// Completion statuses. A completion only ever leaves pending.
const (
	CompletionPending   = "pending"
	CompletionCompleted = "completed"
	CompletionMissed    = "missed"
	CompletionExcused   = "excused"
)

type ChoreDefinition struct {
	ID          int64     `json:"id"`
	UnitID      int64     `json:"unit_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ChoreSchedule struct {
	ID        int64     `json:"id"`
	UnitID    int64     `json:"unit_id"`
	WeekID    string    `json:"week_id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	CreatedAt time.Time `json:"created_at"`
}

// ChoreCompletion is one occupant's obligation for one chore in one week.
// OccupantID is the rotation owner and never changes; AssignedOccupantID is
// whoever currently holds the obligation after swaps.
type ChoreCompletion struct {
	ID                 int64      `json:"id"`
	ScheduleID         int64      `json:"schedule_id"`
	ChoreDefinitionID  int64      `json:"chore_definition_id"`
	OccupantID         int64      `json:"occupant_id"`
	AssignedOccupantID int64      `json:"assigned_occupant_id"`
	DueDate            string     `json:"due_date"`
	Status             string     `json:"status"`
	CompletedAt        *time.Time `json:"completed_at"`
	PhotoPath          string     `json:"photo_path"`
	Notes              string     `json:"notes"`
	ExcusedBy          *int64     `json:"excused_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	ChoreName    string `json:"chore_name,omitempty"`
	AssigneeName string `json:"assignee_name,omitempty"`
}

// CompletionSeed describes a completion the schedule generator wants to exist.
type CompletionSeed struct {
	ChoreDefinitionID int64
	OccupantID        int64
	DueDate           string
}

// ScheduleView is a schedule together with its completions.
type ScheduleView struct {
	ChoreSchedule
	NextWeekID  string            `json:"next_week_id"`
	Completions []ChoreCompletion `json:"completions"`
}
