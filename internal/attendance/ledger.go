// Package attendance implements the check-in/check-out state machine. At
// most one active session may exist per employee; the ledger serializes
// writers through a per-employee lock and the database backs the invariant
// with a partial unique index.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/onsite-hq/onsite/internal/audit"
	"github.com/onsite-hq/onsite/internal/config"
	"github.com/onsite-hq/onsite/internal/events"
	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/internal/geofence"
	"github.com/onsite-hq/onsite/internal/store"
	"github.com/onsite-hq/onsite/model"
	"github.com/onsite-hq/onsite/params"
)

// Observation is the admission-time snapshot handed to the fraud screening
// observer for every accepted check-in.
type Observation struct {
	EmployeeID    uint
	SessionID     uint
	Point         geo.Point
	AccuracyM     float64
	Time          time.Time
	NearestFenceM float64
}

// AdmissionObserver receives every accepted check-in synchronously, with the
// employee's previous check-in when one is known.
type AdmissionObserver interface {
	ObserveCheckIn(ctx context.Context, curr Observation, prev *Observation)
}

// EmployeeGetter is the read-only view of the HR-owned employee table.
type EmployeeGetter interface {
	FindByID(ctx context.Context, id uint) (*model.Employee, error)
}

// LastCheckIn is the cached snapshot of an employee's latest accepted
// check-in, kept in redis so the admission-time speed check avoids a SQL
// round trip.
type LastCheckIn struct {
	SessionID uint    `redis:"session_id"`
	Lat       float64 `redis:"lat"`
	Lng       float64 `redis:"lng"`
	AccuracyM float64 `redis:"accuracy_m"`
	UnixMilli int64   `redis:"unix_milli"`
}

type Ledger struct {
	repo      Repository
	employees EmployeeGetter
	fences    *geofence.Index
	lastSeen  store.Store[LastCheckIn]
	observer  AdmissionObserver
	publisher events.Publisher
	policy    string
	locks     employeeLocks
}

func NewLedger(
	repo Repository,
	employees EmployeeGetter,
	fences *geofence.Index,
	lastSeen store.Store[LastCheckIn],
	observer AdmissionObserver,
	publisher events.Publisher,
	policy string,
) *Ledger {
	return &Ledger{
		repo:      repo,
		employees: employees,
		fences:    fences,
		lastSeen:  lastSeen,
		observer:  observer,
		publisher: publisher,
		policy:    policy,
	}
}

func (l *Ledger) publish(ctx context.Context, event events.Event) {
	if l.publisher != nil {
		l.publisher.Publish(ctx, event)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (l *Ledger) checkEmployee(ctx context.Context, employeeID uint) error {
	employee, err := l.employees.FindByID(ctx, employeeID)
	if err != nil {
		return err
	}
	if employee == nil {
		return ErrEmployeeNotFound
	}
	if !employee.IsActive() {
		return ErrEmployeeInactive
	}
	return nil
}

// previousCheckIn returns the employee's last accepted check-in before ts,
// preferring the redis snapshot and falling back to the ledger history.
func (l *Ledger) previousCheckIn(ctx context.Context, employeeID uint, ts time.Time) *Observation {
	if l.lastSeen != nil {
		cached, err := l.lastSeen.Get(ctx, fmt.Sprint(employeeID))
		if err == nil {
			cachedAt := time.UnixMilli(cached.UnixMilli)
			if cachedAt.Before(ts) {
				return &Observation{
					EmployeeID: employeeID,
					SessionID:  cached.SessionID,
					Point:      geo.Point{Lat: cached.Lat, Lng: cached.Lng},
					AccuracyM:  cached.AccuracyM,
					Time:       cachedAt,
				}
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Failed to read last check-in snapshot", "employee", employeeID, "error", err)
		}
	}

	prev, err := l.repo.FindPrevious(ctx, employeeID, ts)
	if err != nil {
		slog.Warn("Failed to load previous check-in", "employee", employeeID, "error", err)
		return nil
	}
	if prev == nil {
		return nil
	}
	return &Observation{
		EmployeeID: employeeID,
		SessionID:  prev.ID,
		Point:      geo.Point{Lat: prev.CheckInLat, Lng: prev.CheckInLng},
		AccuracyM:  prev.CheckInAccuracyM,
		Time:       prev.CheckInTime,
	}
}

func (l *Ledger) rememberCheckIn(ctx context.Context, session *model.AttendanceSession) {
	if l.lastSeen == nil {
		return
	}
	snapshot := LastCheckIn{
		SessionID: session.ID,
		Lat:       session.CheckInLat,
		Lng:       session.CheckInLng,
		AccuracyM: session.CheckInAccuracyM,
		UnixMilli: session.CheckInTime.UnixMilli(),
	}
	if err := l.lastSeen.Set(ctx, fmt.Sprint(session.EmployeeID), snapshot, params.LastCheckInMaxAge); err != nil {
		slog.Warn("Failed to cache last check-in", "employee", session.EmployeeID, "error", err)
	}
}

// CheckIn admits a new attendance session for the employee at the reported
// position. Under the strict policy a position outside every active fence is
// rejected with ErrOutsideGeofence; under the soft policy the session is
// admitted but flagged.
func (l *Ledger) CheckIn(ctx context.Context, employeeID uint, point geo.Point, accuracyM float64, ts time.Time) (*model.AttendanceSession, *model.Geofence, error) {
	if err := l.checkEmployee(ctx, employeeID); err != nil {
		return nil, nil, err
	}

	unlock := l.locks.lock(employeeID)
	defer unlock()

	active, err := l.repo.FindActive(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		return nil, nil, ErrAlreadyActive
	}

	within, fence := l.fences.IsWithinAny(point, accuracyM)
	flagged := false
	flagReason := ""
	if !within {
		if l.policy == config.PolicyStrict {
			audit.RecordCheckIn(ctx, audit.CheckInRecord{
				EmployeeID: employeeID,
				Lat:        point.Lat,
				Lng:        point.Lng,
				Admitted:   false,
				Reason:     "outside geofence",
			})
			return nil, nil, ErrOutsideGeofence
		}
		flagged = true
		flagReason = "outside geofence"
	}

	activeKey := employeeID
	session := model.AttendanceSession{
		EmployeeID:       employeeID,
		CheckInTime:      ts,
		CheckInLat:       point.Lat,
		CheckInLng:       point.Lng,
		CheckInAccuracyM: accuracyM,
		Status:           model.AttendanceStatusActive,
		Flagged:          flagged,
		FlagReason:       flagReason,
		ActiveKey:        &activeKey,
	}
	if fence != nil {
		fenceID := fence.ID
		session.GeofenceID = &fenceID
	}

	prev := l.previousCheckIn(ctx, employeeID, ts)

	var mysqlErr *mysql.MySQLError
	if err := l.repo.Create(ctx, &session); err != nil {
		// The unique index on active_key backs the one-active-session
		// invariant even if a writer slips past the lock.
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, nil, ErrAlreadyActive
		}
		return nil, nil, err
	}

	if l.observer != nil {
		curr := Observation{
			EmployeeID: employeeID,
			SessionID:  session.ID,
			Point:      point,
			AccuracyM:  accuracyM,
			Time:       ts,
		}
		if _, distance, err := l.fences.Nearest(point); err == nil {
			curr.NearestFenceM = distance
		}
		l.observer.ObserveCheckIn(ctx, curr, prev)
	}

	l.rememberCheckIn(ctx, &session)

	record := audit.CheckInRecord{
		EmployeeID: employeeID,
		SessionID:  session.ID,
		Lat:        point.Lat,
		Lng:        point.Lng,
		Admitted:   true,
		Reason:     flagReason,
	}
	if session.GeofenceID != nil {
		record.GeofenceID = *session.GeofenceID
	}
	audit.RecordCheckIn(ctx, record)

	payload := events.CheckedInPayload{
		SessionID: session.ID,
		Lat:       point.Lat,
		Lng:       point.Lng,
		Flagged:   flagged,
	}
	if session.GeofenceID != nil {
		payload.GeofenceID = *session.GeofenceID
	}
	l.publish(ctx, events.New(events.TypeCheckedIn, employeeID, payload))
	if fence != nil {
		l.publish(ctx, events.New(events.TypeGeofenceEntered, employeeID, payload))
	}

	return &session, fence, nil
}

// CheckOut closes the employee's active session. A non-positive duration
// (clock skew) is clamped to zero hours and the session is flagged.
func (l *Ledger) CheckOut(ctx context.Context, employeeID uint, ts time.Time) (*model.AttendanceSession, error) {
	unlock := l.locks.lock(employeeID)
	defer unlock()

	session, err := l.repo.FindActive(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}

	duration := ts.Sub(session.CheckInTime)
	flagged := session.Flagged
	flagReason := session.FlagReason
	if duration <= 0 {
		duration = 0
		flagged = true
		if flagReason != "" {
			flagReason += "; "
		}
		flagReason += "non-positive duration"
	}
	totalHours := round2(duration.Hours())

	columns := map[string]interface{}{
		"check_out_time": ts,
		"status":         model.AttendanceStatusCompleted,
		"total_hours":    totalHours,
		"flagged":        flagged,
		"flag_reason":    flagReason,
		"active_key":     nil,
	}
	rows, err := l.repo.CloseActive(ctx, session.ID, columns)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost a close race; the session is no longer active.
		return nil, ErrNoActiveSession
	}

	session.CheckOutTime = &ts
	session.Status = model.AttendanceStatusCompleted
	session.TotalHours = totalHours
	session.Flagged = flagged
	session.FlagReason = flagReason
	session.ActiveKey = nil

	audit.RecordCheckOut(ctx, audit.CheckOutRecord{
		EmployeeID: employeeID,
		SessionID:  session.ID,
		Reason:     flagReason,
	})

	payload := events.CheckedOutPayload{
		SessionID:  session.ID,
		TotalHours: totalHours,
		Flagged:    flagged,
	}
	l.publish(ctx, events.New(events.TypeCheckedOut, employeeID, payload))
	if session.GeofenceID != nil {
		l.publish(ctx, events.New(events.TypeGeofenceLeft, employeeID, payload))
	}

	return session, nil
}

// ForceClose marks the employee's active session incomplete. Operator action;
// no worked hours are credited.
func (l *Ledger) ForceClose(ctx context.Context, employeeID uint, closedBy string) (*model.AttendanceSession, error) {
	unlock := l.locks.lock(employeeID)
	defer unlock()

	session, err := l.repo.FindActive(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}

	reason := "force closed by " + closedBy
	columns := map[string]interface{}{
		"status":      model.AttendanceStatusIncomplete,
		"flagged":     true,
		"flag_reason": reason,
		"active_key":  nil,
	}
	rows, err := l.repo.CloseActive(ctx, session.ID, columns)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNoActiveSession
	}

	session.Status = model.AttendanceStatusIncomplete
	session.Flagged = true
	session.FlagReason = reason
	session.ActiveKey = nil

	audit.RecordCheckOut(ctx, audit.CheckOutRecord{
		EmployeeID: employeeID,
		SessionID:  session.ID,
		Forced:     true,
		Reason:     reason,
	})
	return session, nil
}

// ActiveSession returns the employee's active session, or nil when none.
func (l *Ledger) ActiveSession(ctx context.Context, employeeID uint) (*model.AttendanceSession, error) {
	return l.repo.FindActive(ctx, employeeID)
}

// History returns the employee's sessions inside the fraud evaluation window,
// newest first.
func (l *Ledger) History(ctx context.Context, employeeID uint, limit int) ([]*model.AttendanceSession, error) {
	if limit <= 0 || limit > params.HistoryWindowSessions {
		limit = params.HistoryWindowSessions
	}
	since := time.Now().AddDate(0, 0, -params.HistoryWindowDays)
	return l.repo.FindRecent(ctx, employeeID, since, limit)
}
