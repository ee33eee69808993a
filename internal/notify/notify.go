// Package notify tells the people involved in a rotation change about it.
// Every notification is best effort: delivery failures are logged and never
// undo the change that triggered them.
package notify

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/store"
	"github.com/dukerupert/tenantry/internal/websocket"
)

// Mailer sends transactional email.
type Mailer interface {
	Configured() bool
	SendSwapRequested(toEmail, requesterName, weekID, reason string) error
	SendSwapResolved(toEmail, weekID, status string) error
	SendRequestUpdate(toEmail, title, status, notes string) error
}

// Pusher delivers web push notifications to a user's devices.
type Pusher interface {
	SendToUser(userID int64, payload push.Payload) (int, error)
}

// Broadcaster fans a change out to the websocket clients watching a unit.
type Broadcaster interface {
	BroadcastUnit(unitID int64, msg websocket.Message)
}

type Notifier struct {
	users     *store.UserStore
	tenants   *store.TenantStore
	occupants *store.OccupantStore
	schedules *store.ScheduleStore
	mail      Mailer
	push      Pusher
	hub       Broadcaster
	logger    *slog.Logger
}

// New creates a Notifier. Any of mail, pusher and hub may be nil to skip
// that channel.
func New(db *sql.DB, mail Mailer, pusher Pusher, hub Broadcaster, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		users:     store.NewUserStore(db),
		tenants:   store.NewTenantStore(db),
		occupants: store.NewOccupantStore(db),
		schedules: store.NewScheduleStore(db),
		mail:      mail,
		push:      pusher,
		hub:       hub,
		logger:    logger,
	}
}

// SwapRequested tells the target's user that someone asked to trade.
func (n *Notifier) SwapRequested(sw *model.SwapRequest) {
	sched, err := n.schedules.GetByID(sw.ScheduleID)
	if err != nil || sched == nil {
		n.logger.Error("notify swap requested: load schedule", "swap_id", sw.ID, "error", err)
		return
	}
	n.broadcast(sched.UnitID, websocket.NewMessage("swap", "created", sw.ID, map[string]any{"schedule_id": sw.ScheduleID}))

	requester, err := n.occupants.GetByID(sw.RequesterID)
	if err != nil || requester == nil {
		n.logger.Error("notify swap requested: load requester", "swap_id", sw.ID, "error", err)
		return
	}
	target, err := n.userForOccupant(sw.TargetID)
	if err != nil {
		n.logger.Error("notify swap requested: load target", "swap_id", sw.ID, "error", err)
		return
	}

	if n.mail != nil && n.mail.Configured() {
		if err := n.mail.SendSwapRequested(target.Email, requester.Name, sched.WeekID, sw.Reason); err != nil {
			n.logger.Warn("swap request email failed", "swap_id", sw.ID, "error", err)
		}
	}
	n.sendPush(target.ID, push.Payload{
		Title:  "Chore swap request",
		Body:   fmt.Sprintf("%s wants to swap chores for %s", requester.Name, sched.WeekID),
		URL:    "/swaps",
		Tag:    model.NotifSwapRequested,
		Urgent: true,
	})
}

// SwapResolved tells the requester's user how their swap ended.
func (n *Notifier) SwapResolved(sw *model.SwapRequest) {
	sched, err := n.schedules.GetByID(sw.ScheduleID)
	if err != nil || sched == nil {
		n.logger.Error("notify swap resolved: load schedule", "swap_id", sw.ID, "error", err)
		return
	}
	n.broadcast(sched.UnitID, websocket.NewMessage("swap", sw.Status, sw.ID, map[string]any{"schedule_id": sw.ScheduleID}))

	// The requester cancelled it themselves.
	if sw.Status == model.SwapCancelled {
		return
	}
	requester, err := n.userForOccupant(sw.RequesterID)
	if err != nil {
		n.logger.Error("notify swap resolved: load requester", "swap_id", sw.ID, "error", err)
		return
	}

	if n.mail != nil && n.mail.Configured() {
		if err := n.mail.SendSwapResolved(requester.Email, sched.WeekID, sw.Status); err != nil {
			n.logger.Warn("swap resolved email failed", "swap_id", sw.ID, "error", err)
		}
	}
	n.sendPush(requester.ID, push.Payload{
		Title: "Chore swap " + sw.Status,
		Body:  fmt.Sprintf("Your swap request for %s was %s", sched.WeekID, sw.Status),
		URL:   "/swaps",
		Tag:   model.NotifSwapResolved,
	})
}

// RequestFiled tells every admin a tenant filed a request. Maintenance
// requests are pushed as urgent.
func (n *Notifier) RequestFiled(req *model.Request) {
	tenant, err := n.tenants.GetByID(req.TenantID)
	if err != nil || tenant == nil {
		n.logger.Error("notify request filed: load tenant", "request_id", req.ID, "error", err)
		return
	}
	n.broadcast(tenant.UnitID, websocket.NewMessage("request", "created", req.ID, map[string]any{"kind": req.Kind}))

	admins, err := n.users.ListAdmins()
	if err != nil {
		n.logger.Error("notify request filed: list admins", "request_id", req.ID, "error", err)
		return
	}
	for _, admin := range admins {
		n.sendPush(admin.ID, push.Payload{
			Title:  fmt.Sprintf("New %s request", req.Kind),
			Body:   fmt.Sprintf("%s: %s", tenant.Name, req.Title),
			URL:    "/admin/requests",
			Tag:    model.NotifRequestFiled,
			Urgent: req.Kind == model.RequestMaintenance,
		})
	}
}

// RequestUpdated tells a tenant an admin reviewed their request.
func (n *Notifier) RequestUpdated(req *model.Request) {
	tenant, err := n.tenants.GetByID(req.TenantID)
	if err != nil || tenant == nil {
		n.logger.Error("notify request updated: load tenant", "request_id", req.ID, "error", err)
		return
	}
	n.broadcast(tenant.UnitID, websocket.NewMessage("request", "updated", req.ID, map[string]any{"status": req.Status}))

	if n.mail != nil && n.mail.Configured() {
		if err := n.mail.SendRequestUpdate(tenant.Email, req.Title, req.Status, req.AdminNotes); err != nil {
			n.logger.Warn("request update email failed", "request_id", req.ID, "error", err)
		}
	}
	n.sendPush(tenant.UserID, push.Payload{
		Title: "Request " + req.Status,
		Body:  req.Title,
		URL:   "/requests",
		Tag:   model.NotifRequestUpdate,
	})
}

// CompletionChanged broadcasts a completion's new state to its unit.
func (n *Notifier) CompletionChanged(c *model.ChoreCompletion) {
	sched, err := n.schedules.GetByID(c.ScheduleID)
	if err != nil || sched == nil {
		n.logger.Error("notify completion: load schedule", "completion_id", c.ID, "error", err)
		return
	}
	n.broadcast(sched.UnitID, websocket.NewMessage("chore_completion", c.Status, c.ID, map[string]any{
		"schedule_id":          c.ScheduleID,
		"assigned_occupant_id": c.AssignedOccupantID,
	}))
}

func (n *Notifier) userForOccupant(occupantID int64) (*model.User, error) {
	occ, err := n.occupants.GetByID(occupantID)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		return nil, fmt.Errorf("occupant %d not found", occupantID)
	}
	u, err := n.users.GetByID(occ.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d not found", occ.UserID)
	}
	return u, nil
}

func (n *Notifier) broadcast(unitID int64, msg websocket.Message) {
	if n.hub != nil {
		n.hub.BroadcastUnit(unitID, msg)
	}
}

func (n *Notifier) sendPush(userID int64, payload push.Payload) {
	if n.push == nil {
		return
	}
	if _, err := n.push.SendToUser(userID, payload); err != nil {
		n.logger.Warn("push failed", "user_id", userID, "error", err)
	}
}
