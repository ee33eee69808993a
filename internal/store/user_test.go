package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/tenantry/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(setupTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice", model.RoleTenant)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Role != model.RoleTenant {
		t.Errorf("role = %q, want %q", u.Role, model.RoleTenant)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	us.Create("alice@example.com", "Alice", model.RoleTenant)
	_, err := us.Create("ALICE@example.com", "Alice Again", model.RoleTenant)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(9999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice", model.RoleTenant)

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want id %d", u, created.ID)
	}
}

func TestUserUpdateName(t *testing.T) {
	us := setupUserTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", model.RoleTenant)
	updated, err := us.UpdateName(u.ID, "Alice B")
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if updated.Email != "alice@example.com" || updated.Name != "Alice B" {
		t.Errorf("updated = %+v", updated)
	}
	if missing, err := us.UpdateName(u.ID+100, "Nobody"); err != nil || missing != nil {
		t.Errorf("unknown id = %+v, %v; want nil, nil", missing, err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	us := setupUserTestDB(t)

	admin, err := us.EnsureAdmin("owner@example.com")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", admin.Role)
	}

	again, err := us.EnsureAdmin("owner@example.com")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if again.ID != admin.ID {
		t.Errorf("id = %d, want %d", again.ID, admin.ID)
	}

	tenant, _ := us.Create("bob@example.com", "Bob", model.RoleTenant)
	promoted, err := us.EnsureAdmin("bob@example.com")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.ID != tenant.ID || promoted.Role != model.RoleAdmin {
		t.Errorf("promoted = %+v", promoted)
	}

	admins, err := us.ListAdmins()
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(admins) != 2 {
		t.Errorf("admins = %d, want 2", len(admins))
	}
}

func TestEnsureAdminRefusesActiveTenant(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	u, _ := us.Create("carol@example.com", "Carol", model.RoleTenant)
	unit, _ := NewUnitStore(db).Create("Maple House", "", "UTC")
	room, _ := NewRoomStore(db).Create(unit.ID, "101")
	if _, err := NewTenantStore(db).Create(u.ID, room.ID, "2024-01-01"); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	if _, err := us.EnsureAdmin("CAROL@example.com"); !errors.Is(err, ErrHasTenancy) {
		t.Fatalf("err = %v, want ErrHasTenancy", err)
	}
	got, _ := us.GetByID(u.ID)
	if got.Role != model.RoleTenant {
		t.Errorf("role = %q, want tenant", got.Role)
	}
}
