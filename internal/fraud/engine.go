// Package fraud screens attendance activity with independent heuristics and
// appends an alert for every rule that fires. The engine only observes; it
// never blocks a check-in or mutates a session.
package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onsite-hq/onsite/internal/attendance"
	"github.com/onsite-hq/onsite/internal/audit"
	"github.com/onsite-hq/onsite/internal/events"
	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/model"
	"github.com/onsite-hq/onsite/params"
)

// SessionSource is the slice of the attendance store the heuristics read.
type SessionSource interface {
	FindActiveAll(ctx context.Context, employeeID uint) ([]*model.AttendanceSession, error)
	FindRecentCompleted(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error)
}

type spoofingEvidence struct {
	PrevSessionID  uint    `json:"prevSessionId"`
	CurrSessionID  uint    `json:"currSessionId"`
	DistanceMeters float64 `json:"distanceMeters"`
	BearingDeg     float64 `json:"bearingDeg"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	SpeedKmh       float64 `json:"speedKmh"`
	ThresholdKmh   float64 `json:"thresholdKmh"`
}

type accuracyEvidence struct {
	SessionID  uint    `json:"sessionId"`
	AccuracyM  float64 `json:"accuracyMeters"`
	ThresholdM float64 `json:"thresholdMeters"`
}

type timePatternEvidence struct {
	Samples        int      `json:"samples"`
	Distinct       int      `json:"distinct"`
	DuplicateRatio float64  `json:"duplicateRatio"`
	CheckInTimes   []string `json:"checkInTimes"`
}

type deviceSharingEvidence struct {
	ActiveSessionIDs []uint `json:"activeSessionIds"`
}

type Engine struct {
	alerts    AlertRepository
	sessions  SessionSource
	publisher events.Publisher
	now       func() time.Time
}

func NewEngine(alerts AlertRepository, sessions SessionSource, publisher events.Publisher) *Engine {
	return &Engine{
		alerts:    alerts,
		sessions:  sessions,
		publisher: publisher,
		now:       time.Now,
	}
}

// ObserveCheckIn runs every admission-time heuristic for the accepted
// check-in. Rules are independent; one firing never suppresses another.
func (e *Engine) ObserveCheckIn(ctx context.Context, curr attendance.Observation, prev *attendance.Observation) {
	e.EvaluateSpoofing(ctx, curr, prev)
	e.EvaluateDeviceSharing(ctx, curr.EmployeeID)
	e.EvaluateTimePattern(ctx, curr.EmployeeID)
}

// EvaluateEmployee runs the history-based heuristics on demand, outside the
// check-in path.
func (e *Engine) EvaluateEmployee(ctx context.Context, employeeID uint) {
	e.EvaluateDeviceSharing(ctx, employeeID)
	e.EvaluateTimePattern(ctx, employeeID)
}

// EvaluateSpoofing checks an accepted check-in for location spoofing. Two
// independent signals: implied travel speed from the previous check-in above
// the threshold raises a high-severity alert, a reported GPS accuracy worse
// than the threshold raises a medium one.
func (e *Engine) EvaluateSpoofing(ctx context.Context, curr attendance.Observation, prev *attendance.Observation) {
	if prev != nil && curr.Time.After(prev.Time) {
		elapsed := curr.Time.Sub(prev.Time).Seconds()
		speed := geo.SpeedKmh(prev.Point, curr.Point, elapsed)
		if speed > params.SpoofSpeedThresholdKmh {
			e.raise(ctx, &model.FraudAlert{
				Type:        model.FraudTypeLocationSpoofing,
				Severity:    model.FraudSeverityHigh,
				EmployeeID:  curr.EmployeeID,
				Description: fmt.Sprintf("implied travel speed %.0f km/h between consecutive check-ins", speed),
			}, spoofingEvidence{
				PrevSessionID:  prev.SessionID,
				CurrSessionID:  curr.SessionID,
				DistanceMeters: geo.DistanceMeters(prev.Point, curr.Point),
				BearingDeg:     geo.Bearing(prev.Point, curr.Point),
				ElapsedSeconds: elapsed,
				SpeedKmh:       speed,
				ThresholdKmh:   params.SpoofSpeedThresholdKmh,
			})
		}
	}

	if curr.AccuracyM > params.SpoofAccuracyThresholdM {
		e.raise(ctx, &model.FraudAlert{
			Type:        model.FraudTypeLocationSpoofing,
			Severity:    model.FraudSeverityMedium,
			EmployeeID:  curr.EmployeeID,
			Description: fmt.Sprintf("reported GPS accuracy %.0f m exceeds %.0f m", curr.AccuracyM, params.SpoofAccuracyThresholdM),
		}, accuracyEvidence{
			SessionID:  curr.SessionID,
			AccuracyM:  curr.AccuracyM,
			ThresholdM: params.SpoofAccuracyThresholdM,
		})
	}
}

// EvaluateTimePattern flags employees whose recent completed sessions repeat
// the exact same check-in instant. Wall-clock check-ins never collide to the
// nanosecond; duplicates mean injected records. Checking in at the same time
// of day on different days is normal shift behavior and never counts. Needs a
// minimum sample size; silent below it.
func (e *Engine) EvaluateTimePattern(ctx context.Context, employeeID uint) {
	since := e.now().AddDate(0, 0, -params.HistoryWindowDays)
	sessions, err := e.sessions.FindRecentCompleted(ctx, employeeID, since, params.HistoryWindowSessions)
	if err != nil {
		slog.Warn("Failed to load attendance history for time-pattern check", "employee", employeeID, "error", err)
		return
	}
	if len(sessions) < params.MinPatternSamples {
		return
	}

	seen := make(map[int64]struct{}, len(sessions))
	times := make([]string, 0, len(sessions))
	for _, session := range sessions {
		seen[session.CheckInTime.UnixNano()] = struct{}{}
		times = append(times, session.CheckInTime.Format(time.RFC3339))
	}
	ratio := float64(len(sessions)-len(seen)) / float64(len(sessions))
	if ratio < params.DuplicateRatioThreshold {
		return
	}

	e.raise(ctx, &model.FraudAlert{
		Type:        model.FraudTypeTimeManipulation,
		Severity:    model.FraudSeverityHigh,
		EmployeeID:  employeeID,
		Description: fmt.Sprintf("%.0f%% of the last %d check-in timestamps are exact duplicates", ratio*100, len(sessions)),
	}, timePatternEvidence{
		Samples:        len(sessions),
		Distinct:       len(seen),
		DuplicateRatio: ratio,
		CheckInTimes:   times,
	})
}

// EvaluateDeviceSharing flags an employee holding more than one active
// session, which the ledger invariant should make impossible.
func (e *Engine) EvaluateDeviceSharing(ctx context.Context, employeeID uint) {
	sessions, err := e.sessions.FindActiveAll(ctx, employeeID)
	if err != nil {
		slog.Warn("Failed to load active sessions for device-sharing check", "employee", employeeID, "error", err)
		return
	}
	if len(sessions) <= 1 {
		return
	}

	ids := make([]uint, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	e.raise(ctx, &model.FraudAlert{
		Type:        model.FraudTypeDeviceSharing,
		Severity:    model.FraudSeverityMedium,
		EmployeeID:  employeeID,
		Description: fmt.Sprintf("%d concurrent active attendance sessions", len(sessions)),
	}, deviceSharingEvidence{ActiveSessionIDs: ids})
}

func (e *Engine) raise(ctx context.Context, alert *model.FraudAlert, evidence any) {
	raw, err := json.Marshal(evidence)
	if err != nil {
		slog.Error("Failed to encode fraud alert evidence", "type", alert.Type, "error", err)
		return
	}
	alert.Evidence = raw

	if err := e.alerts.Create(ctx, alert); err != nil {
		slog.Error("Failed to store fraud alert", "type", alert.Type, "employee", alert.EmployeeID, "error", err)
		return
	}

	slog.Warn("Fraud alert raised",
		"alert", alert.ID, "type", alert.Type, "severity", alert.Severity, "employee", alert.EmployeeID)
	audit.RecordFraudAlert(ctx, audit.FraudAlertRecord{
		EmployeeID: alert.EmployeeID,
		AlertID:    alert.ID,
		RuleType:   alert.Type,
		Severity:   alert.Severity,
	})
	if e.publisher != nil {
		e.publisher.Publish(ctx, events.New(events.TypeFraudAlertRaised, alert.EmployeeID, events.FraudAlertRaisedPayload{
			AlertID:  alert.ID,
			RuleType: alert.Type,
			Severity: alert.Severity,
		}))
	}
}
