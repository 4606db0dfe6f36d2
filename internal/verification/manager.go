// Package verification runs the time-boxed identity recheck lifecycle:
// trigger creates a pending session with a deadline, respond resolves it
// against the biometric scorer, and the sweep expires sessions whose
// deadline passed. Respond and sweep race by design; compare-and-swap on
// status guarantees exactly one terminal state per session.
package verification

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/onsite-hq/onsite/internal/audit"
	"github.com/onsite-hq/onsite/internal/config"
	"github.com/onsite-hq/onsite/internal/events"
	"github.com/onsite-hq/onsite/model"
	"github.com/onsite-hq/onsite/params"
)

const sweepBatchSize = 500

// AttendanceChecker is the slice of the ledger the manager needs to restrict
// triggers to employees currently at work.
type AttendanceChecker interface {
	ActiveSession(ctx context.Context, employeeID uint) (*model.AttendanceSession, error)
}

// EmployeeDirectory resolves trigger targets.
type EmployeeDirectory interface {
	FindByID(ctx context.Context, id uint) (*model.Employee, error)
	FindActiveIDs(ctx context.Context) ([]uint, error)
}

// TriggerSkip explains why a bulk trigger left an employee out.
type TriggerSkip struct {
	EmployeeID uint
	Reason     error
}

type Manager struct {
	repo       Repository
	attendance AttendanceChecker
	employees  EmployeeDirectory
	scorer     BiometricScorer
	publisher  events.Publisher
	cfg        config.VerificationConfig
	now        func() time.Time
}

func NewManager(
	repo Repository,
	attendance AttendanceChecker,
	employees EmployeeDirectory,
	scorer BiometricScorer,
	publisher events.Publisher,
	cfg config.VerificationConfig,
) *Manager {
	return &Manager{
		repo:       repo,
		attendance: attendance,
		employees:  employees,
		scorer:     scorer,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.publisher != nil {
		m.publisher.Publish(ctx, event)
	}
}

func (m *Manager) clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return m.cfg.DefaultTimeout
	}
	if timeout > params.MaxVerificationTimeout {
		return params.MaxVerificationTimeout
	}
	return timeout
}

func (m *Manager) checkEligible(ctx context.Context, employeeID uint) error {
	employee, err := m.employees.FindByID(ctx, employeeID)
	if err != nil {
		return err
	}
	if employee == nil {
		return ErrEmployeeNotFound
	}
	if !employee.IsActive() {
		return ErrEmployeeInactive
	}
	if m.cfg.RequireActiveSession {
		active, err := m.attendance.ActiveSession(ctx, employeeID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNotWorking
		}
	}
	return nil
}

func (m *Manager) triggerOne(ctx context.Context, employeeID uint, timeout time.Duration, triggeredBy string) (*model.VerificationSession, error) {
	if err := m.checkEligible(ctx, employeeID); err != nil {
		return nil, err
	}

	pending, err := m.repo.FindPending(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if !m.cfg.SupersedePending {
			return nil, ErrSessionAlreadyPending
		}
		// Supersede: close the old timer before opening a new one so the
		// employee never has two concurrent deadlines.
		rows, err := m.repo.ResolvePending(ctx, pending.ID, map[string]interface{}{
			"status": model.VerificationStatusExpired,
		})
		if err != nil {
			return nil, err
		}
		if rows > 0 {
			audit.RecordVerification(ctx, audit.VerificationRecord{
				EmployeeID: employeeID,
				SessionID:  pending.ID,
				EventType:  audit.EventTypeVerificationExpired,
				Reason:     "superseded by " + triggeredBy,
			})
		}
	}

	now := m.now()
	session := model.VerificationSession{
		EmployeeID:  employeeID,
		TriggeredAt: now,
		ExpiresAt:   now.Add(timeout),
		TriggeredBy: triggeredBy,
		Status:      model.VerificationStatusPending,
	}
	if err := m.repo.Create(ctx, &session); err != nil {
		return nil, err
	}

	audit.RecordVerification(ctx, audit.VerificationRecord{
		EmployeeID: employeeID,
		SessionID:  session.ID,
		EventType:  audit.EventTypeVerificationCreated,
		Reason:     "triggered by " + triggeredBy,
	})
	m.publish(ctx, events.New(events.TypeVerificationTriggered, employeeID, events.VerificationTriggeredPayload{
		SessionID:   session.ID,
		TriggeredBy: triggeredBy,
		ExpiresAt:   session.ExpiresAt,
	}))
	return &session, nil
}

// Trigger opens one pending verification session per target employee. An
// empty target list means every active employee. Ineligible employees are
// skipped, not fatal, so one stale record cannot abort a bulk spot check.
func (m *Manager) Trigger(ctx context.Context, employeeIDs []uint, timeout time.Duration, triggeredBy string) ([]*model.VerificationSession, []TriggerSkip, error) {
	timeout = m.clampTimeout(timeout)

	if len(employeeIDs) == 0 {
		ids, err := m.employees.FindActiveIDs(ctx)
		if err != nil {
			return nil, nil, err
		}
		employeeIDs = ids
	}

	var (
		created []*model.VerificationSession
		skipped []TriggerSkip
	)
	for _, employeeID := range employeeIDs {
		session, err := m.triggerOne(ctx, employeeID, timeout, triggeredBy)
		if err != nil {
			skipped = append(skipped, TriggerSkip{EmployeeID: employeeID, Reason: err})
			continue
		}
		created = append(created, session)
	}
	return created, skipped, nil
}

// Respond resolves a pending session with a captured biometric sample. A
// scorer failure degrades to a failed outcome rather than leaving the
// session ambiguously pending. Exactly one resolver wins; late and duplicate
// responses get ErrAlreadyResolved.
func (m *Manager) Respond(ctx context.Context, sessionID, employeeID uint, sample []byte) (*model.VerificationSession, error) {
	session, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if session.EmployeeID != employeeID {
		return nil, ErrNotYours
	}
	if !session.IsPending() {
		return nil, ErrAlreadyResolved
	}

	now := m.now()
	if session.IsExpiredAt(now) {
		// The sweep has not caught this one yet. Expire it here; a late
		// response is rejected either way.
		if rows, err := m.repo.ResolvePending(ctx, session.ID, map[string]interface{}{
			"status": model.VerificationStatusExpired,
		}); err == nil && rows > 0 {
			m.finishExpiry(ctx, session)
		}
		return nil, ErrAlreadyResolved
	}

	status := model.VerificationStatusFailed
	var scorePtr *float64
	score, err := m.scorer.Score(ctx, employeeID, sample)
	if err != nil {
		slog.Warn("Biometric scorer failed; treating verification as failed",
			"session", session.ID, "employee", employeeID, "error", err)
	} else {
		scorePtr = &score
		if score >= m.cfg.MatchThreshold {
			status = model.VerificationStatusVerified
		}
	}
	responseTime := math.Round(now.Sub(session.TriggeredAt).Seconds()*100) / 100

	columns := map[string]interface{}{
		"status":                status,
		"response_time_seconds": responseTime,
	}
	if scorePtr != nil {
		columns["face_match_score"] = *scorePtr
	}
	rows, err := m.repo.ResolvePending(ctx, session.ID, columns)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race against the sweep or a concurrent response.
		return nil, ErrAlreadyResolved
	}

	session.Status = status
	session.FaceMatchScore = scorePtr
	session.ResponseTimeSeconds = &responseTime

	audit.RecordVerification(ctx, audit.VerificationRecord{
		EmployeeID: employeeID,
		SessionID:  session.ID,
		EventType:  audit.EventTypeVerificationResolved,
		Reason:     status,
	})
	m.publish(ctx, events.New(events.TypeVerificationResolved, employeeID, events.VerificationResolvedPayload{
		SessionID: session.ID,
		Status:    status,
		Score:     scorePtr,
	}))
	return session, nil
}

func (m *Manager) finishExpiry(ctx context.Context, session *model.VerificationSession) {
	audit.RecordVerification(ctx, audit.VerificationRecord{
		EmployeeID: session.EmployeeID,
		SessionID:  session.ID,
		EventType:  audit.EventTypeVerificationExpired,
	})
	m.publish(ctx, events.New(events.TypeVerificationResolved, session.EmployeeID, events.VerificationResolvedPayload{
		SessionID: session.ID,
		Status:    model.VerificationStatusExpired,
	}))
}

// Sweep expires every pending session whose deadline has passed and returns
// how many it closed. Each session is closed with the same compare-and-swap
// as Respond, so running the sweep concurrently with responses is safe.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	due, err := m.repo.FindDue(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range due {
		rows, err := m.repo.ResolvePending(ctx, session.ID, map[string]interface{}{
			"status": model.VerificationStatusExpired,
		})
		if err != nil {
			slog.Error("Failed to expire verification session", "session", session.ID, "error", err)
			continue
		}
		if rows == 0 {
			// A response resolved it between select and update.
			continue
		}
		expired++
		m.finishExpiry(ctx, session)
	}
	return expired, nil
}

// Get returns a session visible to the given employee. Admins pass admin=true
// to read any session.
func (m *Manager) Get(ctx context.Context, sessionID, employeeID uint, admin bool) (*model.VerificationSession, error) {
	session, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if !admin && session.EmployeeID != employeeID {
		return nil, ErrNotYours
	}
	return session, nil
}

// Recent returns the employee's verification sessions inside the evaluation
// window, newest first.
func (m *Manager) Recent(ctx context.Context, employeeID uint) ([]*model.VerificationSession, error) {
	since := m.now().AddDate(0, 0, -params.HistoryWindowDays)
	return m.repo.FindRecent(ctx, employeeID, since, params.HistoryWindowSessions)
}

// RunSweeper drives Sweep on a fixed interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("Starting verification expiry sweeper", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Verification expiry sweeper stopped")
			return
		case <-ticker.C:
			count, err := m.Sweep(ctx)
			if err != nil {
				slog.Error("Verification expiry sweep failed", "error", err)
				continue
			}
			if count > 0 {
				slog.Info("Expired verification sessions", "count", count)
			}
		}
	}
}
