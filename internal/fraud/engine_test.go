package fraud

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/onsite-hq/onsite/internal/attendance"
	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/model"
)

// oneKmNorth is roughly one kilometer of latitude.
const oneKmNorth = 0.0089932

type fakeAlerts struct {
	created []*model.FraudAlert
}

func (f *fakeAlerts) Create(ctx context.Context, alert *model.FraudAlert) error {
	f.created = append(f.created, alert)
	return nil
}

func (f *fakeAlerts) FindByID(ctx context.Context, id uint) (*model.FraudAlert, error) {
	return nil, nil
}

func (f *fakeAlerts) FindByEmployee(ctx context.Context, employeeID uint, limit int) ([]*model.FraudAlert, error) {
	return nil, nil
}

func (f *fakeAlerts) FindUnresolved(ctx context.Context, limit int) ([]*model.FraudAlert, error) {
	return nil, nil
}

func (f *fakeAlerts) Resolve(ctx context.Context, alertID uint, resolvedBy string) (int64, error) {
	return 0, nil
}

type fakeSessions struct {
	active    []*model.AttendanceSession
	completed []*model.AttendanceSession
	lastSince time.Time
}

func (f *fakeSessions) FindActiveAll(ctx context.Context, employeeID uint) ([]*model.AttendanceSession, error) {
	return f.active, nil
}

func (f *fakeSessions) FindRecentCompleted(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error) {
	f.lastSince = since
	return f.completed, nil
}

func newTestEngine() (*Engine, *fakeAlerts, *fakeSessions) {
	alerts := &fakeAlerts{}
	sessions := &fakeSessions{}
	return NewEngine(alerts, sessions, nil), alerts, sessions
}

func observation(sessionID uint, lat float64, at time.Time) attendance.Observation {
	return attendance.Observation{
		EmployeeID: 1,
		SessionID:  sessionID,
		Point:      geo.Point{Lat: lat, Lng: 0},
		AccuracyM:  10,
		Time:       at,
	}
}

func alertsOfType(alerts []*model.FraudAlert, alertType string) []*model.FraudAlert {
	var matched []*model.FraudAlert
	for _, a := range alerts {
		if a.Type == alertType {
			matched = append(matched, a)
		}
	}
	return matched
}

func TestSpoofingPlausibleSpeedPasses(t *testing.T) {
	engine, alerts, _ := newTestEngine()

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	prev := observation(1, 0, t0)
	// 1 km in 10 s is 360 km/h: fast, but below the spoofing threshold.
	curr := observation(2, oneKmNorth, t0.Add(10*time.Second))

	engine.EvaluateSpoofing(context.Background(), curr, &prev)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}

func TestSpoofingImpossibleSpeedFlagged(t *testing.T) {
	engine, alerts, _ := newTestEngine()

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	prev := observation(1, 0, t0)
	// 1 km in 2 s is 1800 km/h.
	curr := observation(2, oneKmNorth, t0.Add(2*time.Second))

	engine.EvaluateSpoofing(context.Background(), curr, &prev)
	matched := alertsOfType(alerts.created, model.FraudTypeLocationSpoofing)
	if len(matched) != 1 {
		t.Fatalf("raised %d spoofing alerts, want 1", len(matched))
	}
	if matched[0].Severity != model.FraudSeverityHigh {
		t.Fatalf("severity = %q, want high", matched[0].Severity)
	}
	if len(matched[0].Evidence) == 0 {
		t.Fatal("alert has no evidence")
	}
}

func TestSpoofingPoorAccuracyFlagged(t *testing.T) {
	engine, alerts, _ := newTestEngine()

	curr := observation(1, 0, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	curr.AccuracyM = 1500

	engine.EvaluateSpoofing(context.Background(), curr, nil)
	matched := alertsOfType(alerts.created, model.FraudTypeLocationSpoofing)
	if len(matched) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(matched))
	}
	if matched[0].Severity != model.FraudSeverityMedium {
		t.Fatalf("severity = %q, want medium", matched[0].Severity)
	}
}

func TestSpoofingRulesFireIndependently(t *testing.T) {
	engine, alerts, _ := newTestEngine()

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	prev := observation(1, 0, t0)
	curr := observation(2, oneKmNorth, t0.Add(2*time.Second))
	curr.AccuracyM = 1500

	engine.EvaluateSpoofing(context.Background(), curr, &prev)
	if len(alerts.created) != 2 {
		t.Fatalf("raised %d alerts, want one per rule", len(alerts.created))
	}
	severities := map[string]bool{}
	for _, alert := range alerts.created {
		severities[alert.Severity] = true
	}
	if !severities[model.FraudSeverityHigh] || !severities[model.FraudSeverityMedium] {
		t.Fatalf("severities = %v, want high and medium", severities)
	}
}

func TestSpoofingNoPreviousCheckIn(t *testing.T) {
	engine, alerts, _ := newTestEngine()

	curr := observation(1, 0, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	engine.EvaluateSpoofing(context.Background(), curr, nil)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}

func completedSessionsAt(t *testing.T, stamps []string) []*model.AttendanceSession {
	t.Helper()
	sessions := make([]*model.AttendanceSession, 0, len(stamps))
	for i, stamp := range stamps {
		ts, err := time.Parse("2006-01-02 15:04:05", stamp)
		if err != nil {
			t.Fatalf("bad timestamp %q: %v", stamp, err)
		}
		sessions = append(sessions, &model.AttendanceSession{
			ID:          uint(i + 1),
			EmployeeID:  1,
			CheckInTime: ts,
			Status:      model.AttendanceStatusCompleted,
		})
	}
	return sessions
}

func TestTimePatternExactDuplicatesFlagged(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	// 10 samples, 6 distinct instants: a 40% duplicate ratio.
	sessions.completed = completedSessionsAt(t, []string{
		"2026-03-02 09:00:00", "2026-03-02 09:00:00", "2026-03-02 09:00:00",
		"2026-03-09 09:15:00", "2026-03-09 09:15:00", "2026-03-09 09:15:00",
		"2026-03-03 08:47:12", "2026-03-04 09:02:41", "2026-03-05 08:58:03", "2026-03-06 09:21:55",
	})

	engine.EvaluateTimePattern(context.Background(), 1)
	matched := alertsOfType(alerts.created, model.FraudTypeTimeManipulation)
	if len(matched) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(matched))
	}
	if matched[0].Severity != model.FraudSeverityHigh {
		t.Fatalf("severity = %q, want high", matched[0].Severity)
	}
}

func TestTimePatternPunctualEmployeeNotFlagged(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	// Same time of day every morning, but a different instant each day:
	// ordinary shift discipline, not manipulation.
	stamps := make([]string, 0, 10)
	for day := 2; day < 12; day++ {
		stamps = append(stamps, fmt.Sprintf("2026-03-%02d 09:00:00", day))
	}
	sessions.completed = completedSessionsAt(t, stamps)

	engine.EvaluateTimePattern(context.Background(), 1)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}

func TestTimePatternNaturalVariancePasses(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	// 10 samples, one duplicated instant: 10% duplicates, below threshold.
	sessions.completed = completedSessionsAt(t, []string{
		"2026-03-02 09:00:00", "2026-03-02 09:00:00", "2026-03-03 08:52:10", "2026-03-04 09:07:33", "2026-03-05 08:58:27",
		"2026-03-06 09:13:02", "2026-03-07 09:01:48", "2026-03-08 08:49:36", "2026-03-09 09:04:15", "2026-03-10 09:18:59",
	})

	engine.EvaluateTimePattern(context.Background(), 1)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}

func TestTimePatternBelowMinimumSamples(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	// Identical instants, but too few samples to judge.
	sessions.completed = completedSessionsAt(t, []string{
		"2026-03-02 09:00:00", "2026-03-02 09:00:00", "2026-03-02 09:00:00", "2026-03-02 09:00:00",
	})

	engine.EvaluateTimePattern(context.Background(), 1)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}

func TestTimePatternWindowUsesEngineClock(t *testing.T) {
	engine, _, sessions := newTestEngine()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	engine.EvaluateTimePattern(context.Background(), 1)
	if want := now.AddDate(0, 0, -30); !sessions.lastSince.Equal(want) {
		t.Fatalf("window start = %v, want %v", sessions.lastSince, want)
	}
}

func TestDeviceSharingConcurrentSessionsFlagged(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	sessions.active = []*model.AttendanceSession{
		{ID: 1, EmployeeID: 1, Status: model.AttendanceStatusActive},
		{ID: 2, EmployeeID: 1, Status: model.AttendanceStatusActive},
	}

	engine.EvaluateDeviceSharing(context.Background(), 1)
	matched := alertsOfType(alerts.created, model.FraudTypeDeviceSharing)
	if len(matched) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(matched))
	}
	if matched[0].Severity != model.FraudSeverityMedium {
		t.Fatalf("severity = %q, want medium", matched[0].Severity)
	}
}

func TestDeviceSharingSingleSessionPasses(t *testing.T) {
	engine, alerts, sessions := newTestEngine()
	sessions.active = []*model.AttendanceSession{
		{ID: 1, EmployeeID: 1, Status: model.AttendanceStatusActive},
	}

	engine.EvaluateDeviceSharing(context.Background(), 1)
	if len(alerts.created) != 0 {
		t.Fatalf("raised %d alerts, want 0", len(alerts.created))
	}
}
