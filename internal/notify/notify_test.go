package notify

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/store"
	"github.com/dukerupert/tenantry/internal/websocket"
)

type sentMail struct {
	kind, to, subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Configured() bool { return true }

func (m *fakeMailer) record(kind, to, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("postmark down")
	}
	m.sent = append(m.sent, sentMail{kind, to, subject})
	return nil
}

func (m *fakeMailer) SendSwapRequested(to, requesterName, weekID, reason string) error {
	return m.record("swap_requested", to, requesterName+" "+weekID)
}

func (m *fakeMailer) SendSwapResolved(to, weekID, status string) error {
	return m.record("swap_resolved", to, weekID+" "+status)
}

func (m *fakeMailer) SendRequestUpdate(to, title, status, notes string) error {
	return m.record("request_updated", to, title+" "+status)
}

type pushed struct {
	userID  int64
	payload push.Payload
}

type fakePusher struct{ sent []pushed }

func (p *fakePusher) SendToUser(userID int64, payload push.Payload) (int, error) {
	p.sent = append(p.sent, pushed{userID, payload})
	return 1, nil
}

type broadcast struct {
	unitID int64
	msg    websocket.Message
}

type fakeHub struct{ sent []broadcast }

func (h *fakeHub) BroadcastUnit(unitID int64, msg websocket.Message) {
	h.sent = append(h.sent, broadcast{unitID, msg})
}

type fixture struct {
	db        *sql.DB
	unit      *model.Unit
	users     []*model.User
	tenants   []*model.Tenant
	occupants []*model.Occupant
	schedule  *model.ChoreSchedule
	mail      *fakeMailer
	push      *fakePusher
	hub       *fakeHub
	n         *Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, mail: &fakeMailer{}, push: &fakePusher{}, hub: &fakeHub{}}
	f.unit, err = store.NewUnitStore(db).Create("Maple House", "12 Maple St", "America/Toronto")
	require.NoError(t, err)

	for i, name := range []string{"Ana", "Ben"} {
		room, err := store.NewRoomStore(db).Create(f.unit.ID, fmt.Sprintf("%d", 101+i))
		require.NoError(t, err)
		u, err := store.NewUserStore(db).Create(fmt.Sprintf("%s@example.com", name), name, model.RoleTenant)
		require.NoError(t, err)
		tenant, err := store.NewTenantStore(db).Create(u.ID, room.ID, "2024-01-01")
		require.NoError(t, err)
		occ, err := store.NewOccupantStore(db).Create(tenant.ID, name, 1+i)
		require.NoError(t, err)
		f.users = append(f.users, u)
		f.tenants = append(f.tenants, tenant)
		f.occupants = append(f.occupants, occ)
	}

	start := time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)
	f.schedule, err = store.NewScheduleStore(db).Ensure(f.unit.ID, "2024-W10", start, start.AddDate(0, 0, 7), nil)
	require.NoError(t, err)

	f.n = New(db, f.mail, f.push, f.hub, nil)
	return f
}

func (f *fixture) swap(t *testing.T) *model.SwapRequest {
	t.Helper()
	sw, err := store.NewSwapStore(f.db).Create(f.schedule.ID, f.occupants[0].ID, f.occupants[1].ID, "away")
	require.NoError(t, err)
	return sw
}

func TestSwapRequestedNotifiesTarget(t *testing.T) {
	f := newFixture(t)
	sw := f.swap(t)

	f.n.SwapRequested(sw)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Ben@example.com", f.mail.sent[0].to)
	assert.Equal(t, "Ana 2024-W10", f.mail.sent[0].subject)

	require.Len(t, f.push.sent, 1)
	assert.Equal(t, f.users[1].ID, f.push.sent[0].userID)
	assert.Equal(t, model.NotifSwapRequested, f.push.sent[0].payload.Tag)

	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, f.unit.ID, f.hub.sent[0].unitID)
	assert.Equal(t, "swap_created", f.hub.sent[0].msg.Type)
}

func TestSwapResolvedNotifiesRequester(t *testing.T) {
	f := newFixture(t)
	sw := f.swap(t)
	sw.Status = model.SwapApproved

	f.n.SwapResolved(sw)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Ana@example.com", f.mail.sent[0].to)
	assert.Equal(t, "2024-W10 approved", f.mail.sent[0].subject)
	require.Len(t, f.push.sent, 1)
	assert.Equal(t, f.users[0].ID, f.push.sent[0].userID)
	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, "swap_approved", f.hub.sent[0].msg.Type)
}

func TestSwapCancelledOnlyBroadcasts(t *testing.T) {
	f := newFixture(t)
	sw := f.swap(t)
	sw.Status = model.SwapCancelled

	f.n.SwapResolved(sw)

	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.push.sent)
	assert.Len(t, f.hub.sent, 1)
}

func TestRequestUpdated(t *testing.T) {
	f := newFixture(t)
	req, err := store.NewRequestStore(f.db).Create(f.tenants[1].ID, model.RequestSupply, "Paper towels", "", nil)
	require.NoError(t, err)
	req.Status = model.RequestApproved

	f.n.RequestUpdated(req)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Ben@example.com", f.mail.sent[0].to)
	require.Len(t, f.push.sent, 1)
	assert.Equal(t, f.users[1].ID, f.push.sent[0].userID)
	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, "request_updated", f.hub.sent[0].msg.Type)
}

func TestRequestFiledPushesAdmins(t *testing.T) {
	f := newFixture(t)
	admin, err := store.NewUserStore(f.db).EnsureAdmin("owner@example.com")
	require.NoError(t, err)
	req, err := store.NewRequestStore(f.db).Create(f.tenants[0].ID, model.RequestMaintenance, "Leaky tap", "", nil)
	require.NoError(t, err)

	f.n.RequestFiled(req)

	assert.Empty(t, f.mail.sent)
	require.Len(t, f.push.sent, 1)
	assert.Equal(t, admin.ID, f.push.sent[0].userID)
	assert.Equal(t, model.NotifRequestFiled, f.push.sent[0].payload.Tag)
	assert.True(t, f.push.sent[0].payload.Urgent)
	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, "request_created", f.hub.sent[0].msg.Type)
}

func TestCompletionChanged(t *testing.T) {
	f := newFixture(t)

	f.n.CompletionChanged(&model.ChoreCompletion{
		ID:                 9,
		ScheduleID:         f.schedule.ID,
		AssignedOccupantID: f.occupants[0].ID,
		Status:             model.CompletionCompleted,
	})

	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, f.unit.ID, f.hub.sent[0].unitID)
	assert.Equal(t, "chore_completion_completed", f.hub.sent[0].msg.Type)
	assert.Empty(t, f.push.sent)
}

func TestDeliveryFailureDoesNotStopOtherChannels(t *testing.T) {
	f := newFixture(t)
	f.mail.fail = true
	sw := f.swap(t)

	f.n.SwapRequested(sw)

	assert.Empty(t, f.mail.sent)
	assert.Len(t, f.push.sent, 1)
	assert.Len(t, f.hub.sent, 1)
}

func TestNilChannels(t *testing.T) {
	f := newFixture(t)
	n := New(f.db, nil, nil, nil, nil)
	// Must not panic.
	n.SwapRequested(f.swap(t))
	n.CompletionChanged(&model.ChoreCompletion{ScheduleID: f.schedule.ID})
}

func TestMissingScheduleIsLogged(t *testing.T) {
	f := newFixture(t)
	f.n.SwapRequested(&model.SwapRequest{ID: 1, ScheduleID: 999})
	assert.Empty(t, f.hub.sent)
	assert.Empty(t, f.mail.sent)
}
