package store

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// houseFixture is one unit with a room and tenant per occupant.
type houseFixture struct {
	db        *sql.DB
	unit      *model.Unit
	occupants []*model.Occupant
	chores    []*model.ChoreDefinition
}

// newHouse creates a unit whose occupants have the given chore days, and
// one chore definition per name.
func newHouse(t *testing.T, days []int, chores ...string) *houseFixture {
	t.Helper()
	db := setupTestDB(t)

	unit, err := NewUnitStore(db).Create("Maple House", "12 Maple St", "America/Toronto")
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	f := &houseFixture{db: db, unit: unit}

	rooms := NewRoomStore(db)
	users := NewUserStore(db)
	tenants := NewTenantStore(db)
	occupants := NewOccupantStore(db)
	for i, day := range days {
		room, err := rooms.Create(unit.ID, fmt.Sprintf("%d", 101+i))
		if err != nil {
			t.Fatalf("create room: %v", err)
		}
		u, err := users.Create(fmt.Sprintf("tenant%d@example.com", i), fmt.Sprintf("Tenant %d", i), model.RoleTenant)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		tenant, err := tenants.Create(u.ID, room.ID, "2024-01-01")
		if err != nil {
			t.Fatalf("create tenant: %v", err)
		}
		occ, err := occupants.Create(tenant.ID, fmt.Sprintf("Occupant %c", 'A'+i), day)
		if err != nil {
			t.Fatalf("create occupant: %v", err)
		}
		f.occupants = append(f.occupants, occ)
	}

	defs := NewChoreStore(db)
	for i, name := range chores {
		d, err := defs.Create(unit.ID, name, "", i)
		if err != nil {
			t.Fatalf("create chore definition: %v", err)
		}
		f.chores = append(f.chores, d)
	}
	return f
}

// seeds pairs every chore with every occupant, due on the occupant's day.
func (f *houseFixture) seeds(start time.Time) []model.CompletionSeed {
	var out []model.CompletionSeed
	for _, d := range f.chores {
		for _, o := range f.occupants {
			due := start.AddDate(0, 0, (o.ChoreDay+6)%7)
			out = append(out, model.CompletionSeed{ChoreDefinitionID: d.ID, OccupantID: o.ID, DueDate: due.Format("2006-01-02")})
		}
	}
	return out
}

func weekW10(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Skipf("timezone unavailable: %v", err)
	}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 7)
}
