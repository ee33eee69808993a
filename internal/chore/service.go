// Package chore runs the weekly chore rotation: it generates per-week
// schedules, tracks completion of each obligation and resolves swap requests
// between occupants.
package chore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
	"github.com/dukerupert/tenantry/internal/week"
)

// Actor is the authenticated user an operation runs on behalf of.
type Actor struct {
	UserID int64
	Admin  bool
}

// Service runs the chore rotation of every unit.
type Service struct {
	units     *store.UnitStore
	tenants   *store.TenantStore
	occupants *store.OccupantStore
	chores    *store.ChoreStore
	schedules *store.ScheduleStore
	swaps     *store.SwapStore
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger for swap and sweep events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a Service over db. The clock defaults to time.Now.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		units:     store.NewUnitStore(db),
		tenants:   store.NewTenantStore(db),
		occupants: store.NewOccupantStore(db),
		chores:    store.NewChoreStore(db),
		schedules: store.NewScheduleStore(db),
		swaps:     store.NewSwapStore(db),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Schedule generator ---

// Schedule returns the unit's schedule for weekID, creating it on first use.
// Repeated calls return the same schedule; while the week is still running,
// completions for newly added occupants or chores are filled in. Existing
// completions are never reset.
func (s *Service) Schedule(unitID int64, weekID string) (*model.ScheduleView, error) {
	unit, err := s.units.GetByID(unitID)
	if err != nil {
		return nil, storageErr("get unit", err)
	}
	if unit == nil {
		return nil, fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
	}
	return s.schedule(unit, weekID)
}

// CurrentSchedule returns the schedule of the week containing now in the
// unit's timezone.
func (s *Service) CurrentSchedule(unitID int64) (*model.ScheduleView, error) {
	unit, err := s.units.GetByID(unitID)
	if err != nil {
		return nil, storageErr("get unit", err)
	}
	if unit == nil {
		return nil, fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
	}
	return s.schedule(unit, week.ID(s.now(), unit.Location()))
}

func (s *Service) schedule(unit *model.Unit, weekID string) (*model.ScheduleView, error) {
	loc := unit.Location()
	start, end, err := week.Bounds(weekID, loc)
	if err != nil {
		return nil, fmt.Errorf("week %q: %w", weekID, ErrInvalid)
	}

	sched, err := s.schedules.GetByUnitWeek(unit.ID, weekID)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	if sched == nil || s.now().Before(sched.WeekEnd) {
		seeds, err := s.seeds(unit.ID, start)
		if err != nil {
			return nil, err
		}
		sched, err = s.schedules.Ensure(unit.ID, weekID, start, end, seeds)
		if err != nil {
			return nil, storageErr("ensure schedule", err)
		}
	}

	completions, err := s.schedules.ListCompletions(sched.ID)
	if err != nil {
		return nil, storageErr("list completions", err)
	}
	next, err := week.Next(weekID)
	if err != nil {
		return nil, fmt.Errorf("week %q: %w", weekID, ErrInvalid)
	}
	return &model.ScheduleView{ChoreSchedule: *sched, NextWeekID: next, Completions: completions}, nil
}

// ScheduleHistory lists the schedules generated so far for the actor's
// unit, newest week first. Completions are not included.
func (s *Service) ScheduleHistory(actor Actor, unitID int64) ([]model.ChoreSchedule, error) {
	unitID, err := s.UnitFor(actor, unitID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.schedules.ListByUnit(unitID)
	if err != nil {
		return nil, storageErr("list schedules", err)
	}
	return schedules, nil
}

// seeds pairs every active chore of the unit with every current occupant,
// due on the occupant's chore day within the week starting at weekStart.
func (s *Service) seeds(unitID int64, weekStart time.Time) ([]model.CompletionSeed, error) {
	defs, err := s.chores.ListActiveByUnit(unitID)
	if err != nil {
		return nil, storageErr("list chore definitions", err)
	}
	occupants, err := s.occupants.ListActiveByUnit(unitID)
	if err != nil {
		return nil, storageErr("list occupants", err)
	}

	seeds := make([]model.CompletionSeed, 0, len(defs)*len(occupants))
	for _, d := range defs {
		for _, o := range occupants {
			seeds = append(seeds, model.CompletionSeed{
				ChoreDefinitionID: d.ID,
				OccupantID:        o.ID,
				DueDate:           week.DayDate(weekStart, o.ChoreDay).Format("2006-01-02"),
			})
		}
	}
	return seeds, nil
}

// UnitFor resolves which unit an actor may read. Admins may read any unit
// and must name one; tenants read their own unit, and naming another one is
// forbidden.
func (s *Service) UnitFor(actor Actor, requested int64) (int64, error) {
	if actor.Admin {
		if requested == 0 {
			return 0, fmt.Errorf("unit_id is required: %w", ErrInvalid)
		}
		return requested, nil
	}
	tenant, err := s.tenants.GetActiveByUser(actor.UserID)
	if err != nil {
		return 0, storageErr("get tenant", err)
	}
	if tenant == nil {
		return 0, fmt.Errorf("user %d has no active tenancy: %w", actor.UserID, ErrForbidden)
	}
	if requested != 0 && requested != tenant.UnitID {
		return 0, fmt.Errorf("unit %d: %w", requested, ErrForbidden)
	}
	return tenant.UnitID, nil
}

// --- Completion tracker ---

// MarkComplete records that the current holder of a completion did the chore.
func (s *Service) MarkComplete(actor Actor, completionID int64, photoPath, notes string) (*model.ChoreCompletion, error) {
	c, err := s.completion(completionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedOccupant(actor, c.AssignedOccupantID, true); err != nil {
		return nil, err
	}
	if !CanTransitionCompletion(c.Status, model.CompletionCompleted) {
		return nil, fmt.Errorf("completion %d is %s: %w", completionID, c.Status, ErrInvalidTransition)
	}

	ok, err := s.schedules.Complete(completionID, s.now(), photoPath, notes)
	if err != nil {
		return nil, storageErr("complete", err)
	}
	if !ok {
		return nil, fmt.Errorf("completion %d already resolved: %w", completionID, ErrInvalidTransition)
	}
	s.logger.Info("chore completed", "completion_id", completionID, "user_id", actor.UserID)
	return s.completion(completionID)
}

// Excuse releases an occupant from one week's chore. Admin only.
func (s *Service) Excuse(actor Actor, completionID int64, notes string) (*model.ChoreCompletion, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("excuse completion: %w", ErrForbidden)
	}
	c, err := s.completion(completionID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionCompletion(c.Status, model.CompletionExcused) {
		return nil, fmt.Errorf("completion %d is %s: %w", completionID, c.Status, ErrInvalidTransition)
	}

	ok, err := s.schedules.Excuse(completionID, actor.UserID, notes, s.now())
	if err != nil {
		return nil, storageErr("excuse", err)
	}
	if !ok {
		return nil, fmt.Errorf("completion %d already resolved: %w", completionID, ErrInvalidTransition)
	}
	return s.completion(completionID)
}

// SweepMissed marks every pending completion of an elapsed week missed.
func (s *Service) SweepMissed(now time.Time) (int64, error) {
	n, err := s.schedules.MarkMissed(now)
	if err != nil {
		return 0, storageErr("mark missed", err)
	}
	return n, nil
}

// Completion returns one completion to an admin or a tenant of its unit.
func (s *Service) Completion(actor Actor, id int64) (*model.ChoreCompletion, error) {
	c, err := s.completion(id)
	if err != nil {
		return nil, err
	}
	if actor.Admin {
		return c, nil
	}
	sched, err := s.schedules.GetByID(c.ScheduleID)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", c.ScheduleID, ErrNotFound)
	}
	if _, err := s.UnitFor(actor, sched.UnitID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) completion(id int64) (*model.ChoreCompletion, error) {
	c, err := s.schedules.GetCompletion(id)
	if err != nil {
		return nil, storageErr("get completion", err)
	}
	if c == nil {
		return nil, fmt.Errorf("completion %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// ownedOccupant loads an occupant and checks the actor's login owns it.
// Admins pass when allowAdmin is set.
func (s *Service) ownedOccupant(actor Actor, occupantID int64, allowAdmin bool) (*model.Occupant, error) {
	o, err := s.occupants.GetByID(occupantID)
	if err != nil {
		return nil, storageErr("get occupant", err)
	}
	if o == nil {
		return nil, fmt.Errorf("occupant %d: %w", occupantID, ErrNotFound)
	}
	if o.UserID != actor.UserID && !(allowAdmin && actor.Admin) {
		return nil, fmt.Errorf("occupant %d: %w", occupantID, ErrForbidden)
	}
	return o, nil
}

// --- Swap resolver ---

// CreateSwap proposes that requester and target trade their chores for one
// week's schedule.
func (s *Service) CreateSwap(actor Actor, scheduleID, requesterID, targetID int64, reason string) (*model.SwapRequest, error) {
	if requesterID == targetID {
		return nil, fmt.Errorf("cannot swap with yourself: %w", ErrInvalid)
	}
	sched, err := s.schedules.GetByID(scheduleID)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
	}
	requester, err := s.ownedOccupant(actor, requesterID, true)
	if err != nil {
		return nil, err
	}
	target, err := s.occupants.GetByID(targetID)
	if err != nil {
		return nil, storageErr("get occupant", err)
	}
	if target == nil {
		return nil, fmt.Errorf("occupant %d: %w", targetID, ErrNotFound)
	}
	if requester.UnitID != sched.UnitID || target.UnitID != sched.UnitID {
		return nil, fmt.Errorf("occupants are not in unit %d: %w", sched.UnitID, ErrConflict)
	}
	if !s.now().Before(sched.WeekEnd) {
		return nil, fmt.Errorf("week %s has ended: %w", sched.WeekID, ErrInvalidTransition)
	}

	n, err := s.schedules.CountPendingAssigned(scheduleID, requesterID)
	if err != nil {
		return nil, storageErr("count completions", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("occupant %d has no open chores in week %s: %w", requesterID, sched.WeekID, ErrInvalid)
	}
	pending, err := s.swaps.HasPending(scheduleID, requesterID, targetID)
	if err != nil {
		return nil, storageErr("check pending swap", err)
	}
	if pending {
		return nil, fmt.Errorf("swap already pending: %w", ErrConflict)
	}

	sw, err := s.swaps.Create(scheduleID, requesterID, targetID, reason)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("swap already pending: %w", ErrConflict)
	}
	if err != nil {
		return nil, storageErr("create swap", err)
	}
	s.logger.Info("swap requested", "swap_id", sw.ID, "schedule_id", scheduleID, "requester_id", requesterID, "target_id", targetID)
	return sw, nil
}

// RespondSwap lets the target occupant approve or reject a pending swap.
// Approval exchanges the two occupants' pending completions for that week
// only; their default chore days stay as they are.
func (s *Service) RespondSwap(actor Actor, swapID int64, approve bool) (*model.SwapRequest, error) {
	sw, err := s.swap(swapID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedOccupant(actor, sw.TargetID, false); err != nil {
		return nil, err
	}
	if IsTerminalSwap(sw.Status) {
		return nil, fmt.Errorf("swap %d is %s: %w", swapID, sw.Status, ErrConflict)
	}
	sched, err := s.schedules.GetByID(sw.ScheduleID)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", sw.ScheduleID, ErrNotFound)
	}
	if !s.now().Before(sched.WeekEnd) {
		// The sweep may not have run yet; settle the request now.
		if _, err := s.swaps.Resolve(swapID, model.SwapExpired, s.now()); err != nil {
			return nil, storageErr("expire swap", err)
		}
		return nil, fmt.Errorf("week %s has ended: %w", sched.WeekID, ErrInvalidTransition)
	}

	var ok bool
	if approve {
		ok, err = s.swaps.Approve(swapID, s.now())
	} else {
		ok, err = s.swaps.Resolve(swapID, model.SwapRejected, s.now())
	}
	if err != nil {
		return nil, storageErr("respond to swap", err)
	}
	if !ok {
		return nil, fmt.Errorf("swap %d already resolved: %w", swapID, ErrConflict)
	}
	s.logger.Info("swap resolved", "swap_id", swapID, "approved", approve)
	return s.swap(swapID)
}

// CancelSwap withdraws a pending swap. Only the requester may cancel.
func (s *Service) CancelSwap(actor Actor, swapID int64) (*model.SwapRequest, error) {
	sw, err := s.swap(swapID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedOccupant(actor, sw.RequesterID, false); err != nil {
		return nil, err
	}
	if !CanTransitionSwap(sw.Status, model.SwapCancelled) {
		return nil, fmt.Errorf("swap %d is %s: %w", swapID, sw.Status, ErrInvalidTransition)
	}

	ok, err := s.swaps.Resolve(swapID, model.SwapCancelled, s.now())
	if err != nil {
		return nil, storageErr("cancel swap", err)
	}
	if !ok {
		return nil, fmt.Errorf("swap %d already resolved: %w", swapID, ErrInvalidTransition)
	}
	return s.swap(swapID)
}

// ExpireSwaps expires every pending swap whose week has ended.
func (s *Service) ExpireSwaps(now time.Time) (int64, error) {
	n, err := s.swaps.ExpireEnded(now)
	if err != nil {
		return 0, storageErr("expire swaps", err)
	}
	return n, nil
}

// ListSwaps returns the swaps an actor can see: those involving their
// occupants, or every swap in unitID for admins.
func (s *Service) ListSwaps(actor Actor, unitID int64) ([]model.SwapRequest, error) {
	if actor.Admin {
		if unitID == 0 {
			return nil, fmt.Errorf("unit_id is required: %w", ErrInvalid)
		}
		swaps, err := s.swaps.ListByUnit(unitID)
		if err != nil {
			return nil, storageErr("list swaps", err)
		}
		return swaps, nil
	}

	occupants, err := s.occupants.ListByUser(actor.UserID)
	if err != nil {
		return nil, storageErr("list occupants", err)
	}
	ids := make([]int64, len(occupants))
	for i, o := range occupants {
		ids[i] = o.ID
	}
	swaps, err := s.swaps.ListByOccupants(ids)
	if err != nil {
		return nil, storageErr("list swaps", err)
	}
	return swaps, nil
}

// ScheduleSwaps returns the swaps filed against one week's schedule. Admins
// see all of them; tenants see those involving their occupants.
func (s *Service) ScheduleSwaps(actor Actor, scheduleID int64) ([]model.SwapRequest, error) {
	sched, err := s.schedules.GetByID(scheduleID)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
	}
	if _, err := s.UnitFor(actor, sched.UnitID); err != nil {
		return nil, err
	}
	swaps, err := s.swaps.ListBySchedule(scheduleID)
	if err != nil {
		return nil, storageErr("list swaps", err)
	}
	if actor.Admin {
		return swaps, nil
	}

	occupants, err := s.occupants.ListByUser(actor.UserID)
	if err != nil {
		return nil, storageErr("list occupants", err)
	}
	mine := make(map[int64]bool, len(occupants))
	for _, o := range occupants {
		mine[o.ID] = true
	}
	var visible []model.SwapRequest
	for _, sw := range swaps {
		if mine[sw.RequesterID] || mine[sw.TargetID] {
			visible = append(visible, sw)
		}
	}
	return visible, nil
}

// Swap returns one swap request if the actor is a party to it or an admin.
func (s *Service) Swap(actor Actor, swapID int64) (*model.SwapRequest, error) {
	sw, err := s.swap(swapID)
	if err != nil {
		return nil, err
	}
	if actor.Admin {
		return sw, nil
	}
	if _, err := s.ownedOccupant(actor, sw.RequesterID, false); err == nil {
		return sw, nil
	}
	if _, err := s.ownedOccupant(actor, sw.TargetID, false); err != nil {
		return nil, err
	}
	return sw, nil
}

func (s *Service) swap(id int64) (*model.SwapRequest, error) {
	sw, err := s.swaps.GetByID(id)
	if err != nil {
		return nil, storageErr("get swap", err)
	}
	if sw == nil {
		return nil, fmt.Errorf("swap %d: %w", id, ErrNotFound)
	}
	return sw, nil
}
