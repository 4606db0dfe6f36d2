package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onsite-hq/onsite/internal/config"
	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/internal/geofence"
	"github.com/onsite-hq/onsite/model"
)

type fakeSessionRepo struct {
	sessions []*model.AttendanceSession
	nextID   uint
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *model.AttendanceSession) error {
	f.nextID++
	session.ID = f.nextID
	clone := *session
	f.sessions = append(f.sessions, &clone)
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id uint) (*model.AttendanceSession, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindActive(ctx context.Context, employeeID uint) (*model.AttendanceSession, error) {
	for _, s := range f.sessions {
		if s.EmployeeID == employeeID && s.Status == model.AttendanceStatusActive {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindActiveAll(ctx context.Context, employeeID uint) ([]*model.AttendanceSession, error) {
	var active []*model.AttendanceSession
	for _, s := range f.sessions {
		if s.EmployeeID == employeeID && s.Status == model.AttendanceStatusActive {
			clone := *s
			active = append(active, &clone)
		}
	}
	return active, nil
}

func (f *fakeSessionRepo) FindPrevious(ctx context.Context, employeeID uint, before time.Time) (*model.AttendanceSession, error) {
	var best *model.AttendanceSession
	for _, s := range f.sessions {
		if s.EmployeeID != employeeID || !s.CheckInTime.Before(before) {
			continue
		}
		if best == nil || s.CheckInTime.After(best.CheckInTime) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

func (f *fakeSessionRepo) FindRecent(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error) {
	var recent []*model.AttendanceSession
	for _, s := range f.sessions {
		if s.EmployeeID == employeeID && !s.CheckInTime.Before(since) {
			clone := *s
			recent = append(recent, &clone)
		}
	}
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (f *fakeSessionRepo) FindRecentCompleted(ctx context.Context, employeeID uint, since time.Time, limit int) ([]*model.AttendanceSession, error) {
	var recent []*model.AttendanceSession
	for _, s := range f.sessions {
		if s.EmployeeID == employeeID && s.Status == model.AttendanceStatusCompleted && !s.CheckInTime.Before(since) {
			clone := *s
			recent = append(recent, &clone)
		}
	}
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (f *fakeSessionRepo) CloseActive(ctx context.Context, sessionID uint, columns map[string]interface{}) (int64, error) {
	for _, s := range f.sessions {
		if s.ID != sessionID || s.Status != model.AttendanceStatusActive {
			continue
		}
		if v, ok := columns["check_out_time"].(time.Time); ok {
			s.CheckOutTime = &v
		}
		if v, ok := columns["status"].(string); ok {
			s.Status = v
		}
		if v, ok := columns["total_hours"].(float64); ok {
			s.TotalHours = v
		}
		if v, ok := columns["flagged"].(bool); ok {
			s.Flagged = v
		}
		if v, ok := columns["flag_reason"].(string); ok {
			s.FlagReason = v
		}
		s.ActiveKey = nil
		return 1, nil
	}
	return 0, nil
}

type fakeEmployees struct {
	byID map[uint]*model.Employee
}

func (f *fakeEmployees) FindByID(ctx context.Context, id uint) (*model.Employee, error) {
	return f.byID[id], nil
}

type fenceListRepo struct {
	fences []*model.Geofence
}

func (f *fenceListRepo) FindByID(ctx context.Context, id uint) (*model.Geofence, error) {
	return nil, geofence.ErrFenceNotFound
}
func (f *fenceListRepo) FindAll(ctx context.Context) ([]*model.Geofence, error)    { return f.fences, nil }
func (f *fenceListRepo) FindActive(ctx context.Context) ([]*model.Geofence, error) { return f.fences, nil }
func (f *fenceListRepo) Create(ctx context.Context, fence *model.Geofence) error   { return nil }
func (f *fenceListRepo) Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error) {
	return 0, nil
}

type recordedCheckIn struct {
	curr Observation
	prev *Observation
}

type fakeObserver struct {
	observed []recordedCheckIn
}

func (f *fakeObserver) ObserveCheckIn(ctx context.Context, curr Observation, prev *Observation) {
	f.observed = append(f.observed, recordedCheckIn{curr: curr, prev: prev})
}

var (
	hqCenter = geo.Point{Lat: 40.0, Lng: -74.0}
	employee = uint(7)
)

func offsetNorth(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/111194.93, Lng: p.Lng}
}

func newTestLedger(t *testing.T, policy string, observer AdmissionObserver) (*Ledger, *fakeSessionRepo) {
	t.Helper()
	repo := &fakeSessionRepo{}
	fences := geofence.NewIndex(&fenceListRepo{fences: []*model.Geofence{
		{ID: 1, Name: "HQ", CenterLat: hqCenter.Lat, CenterLng: hqCenter.Lng, RadiusMeters: 200, Active: true},
	}})
	if err := fences.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	staff := &fakeEmployees{byID: map[uint]*model.Employee{
		employee: {ID: employee, Username: "jdoe", Status: model.EmployeeStatusActive},
	}}
	return NewLedger(repo, staff, fences, nil, observer, nil, policy), repo
}

func TestCheckInInsideFence(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)

	session, fence, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 150), 10, time.Now())
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if session.Status != model.AttendanceStatusActive {
		t.Fatalf("status = %q, want active", session.Status)
	}
	if fence == nil || fence.ID != 1 {
		t.Fatalf("fence = %v, want fence 1", fence)
	}
	if session.Flagged {
		t.Fatal("in-fence check-in must not be flagged")
	}
}

func TestCheckInOutsideStrictRejected(t *testing.T) {
	ledger, repo := newTestLedger(t, config.PolicyStrict, nil)

	_, _, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 250), 10, time.Now())
	if !errors.Is(err, ErrOutsideGeofence) {
		t.Fatalf("err = %v, want ErrOutsideGeofence", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatal("rejected check-in must not create a session")
	}
}

func TestCheckInOutsideSoftFlagged(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicySoft, nil)

	session, fence, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 250), 10, time.Now())
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if fence != nil {
		t.Fatal("out-of-fence check-in must not match a fence")
	}
	if !session.Flagged || session.FlagReason != "outside geofence" {
		t.Fatalf("session not flagged as outside geofence: %+v", session)
	}
}

func TestCheckInAlreadyActive(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)
	point := offsetNorth(hqCenter, 100)

	if _, _, err := ledger.CheckIn(context.Background(), employee, point, 10, time.Now()); err != nil {
		t.Fatalf("first CheckIn failed: %v", err)
	}
	if _, _, err := ledger.CheckIn(context.Background(), employee, point, 10, time.Now()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("err = %v, want ErrAlreadyActive", err)
	}
}

func TestCheckInUnknownEmployee(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)

	if _, _, err := ledger.CheckIn(context.Background(), 99, hqCenter, 10, time.Now()); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("err = %v, want ErrEmployeeNotFound", err)
	}
}

func TestCheckOutRoundTrip(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(7*time.Hour + 45*time.Minute)

	if _, _, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 100), 10, t0); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	session, err := ledger.CheckOut(context.Background(), employee, t1)
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if session.Status != model.AttendanceStatusCompleted {
		t.Fatalf("status = %q, want completed", session.Status)
	}
	if session.TotalHours != 7.75 {
		t.Fatalf("total hours = %v, want 7.75", session.TotalHours)
	}
	if session.CheckOutTime == nil || !session.CheckOutTime.Equal(t1) {
		t.Fatalf("check-out time = %v, want %v", session.CheckOutTime, t1)
	}
}

func TestCheckOutNoActiveSession(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)

	if _, err := ledger.CheckOut(context.Background(), employee, time.Now()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestCheckOutClockSkewClamped(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, _, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 100), 10, t0); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	session, err := ledger.CheckOut(context.Background(), employee, t0.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if session.TotalHours != 0 {
		t.Fatalf("total hours = %v, want 0", session.TotalHours)
	}
	if !session.Flagged {
		t.Fatal("skewed check-out must flag the session")
	}
}

func TestForceCloseMarksIncomplete(t *testing.T) {
	ledger, _ := newTestLedger(t, config.PolicyStrict, nil)

	if _, _, err := ledger.CheckIn(context.Background(), employee, offsetNorth(hqCenter, 100), 10, time.Now()); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	session, err := ledger.ForceClose(context.Background(), employee, "ops")
	if err != nil {
		t.Fatalf("ForceClose failed: %v", err)
	}
	if session.Status != model.AttendanceStatusIncomplete {
		t.Fatalf("status = %q, want incomplete", session.Status)
	}
	if active, _ := ledger.ActiveSession(context.Background(), employee); active != nil {
		t.Fatal("force-closed employee must have no active session")
	}
}

func TestObserverSeesPreviousCheckIn(t *testing.T) {
	observer := &fakeObserver{}
	ledger, _ := newTestLedger(t, config.PolicyStrict, observer)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	p0 := offsetNorth(hqCenter, 100)
	p1 := offsetNorth(hqCenter, 150)

	if _, _, err := ledger.CheckIn(context.Background(), employee, p0, 10, t0); err != nil {
		t.Fatalf("first CheckIn failed: %v", err)
	}
	if _, err := ledger.CheckOut(context.Background(), employee, t0.Add(time.Hour)); err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if _, _, err := ledger.CheckIn(context.Background(), employee, p1, 10, t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("second CheckIn failed: %v", err)
	}

	if len(observer.observed) != 2 {
		t.Fatalf("observed %d check-ins, want 2", len(observer.observed))
	}
	if observer.observed[0].prev != nil {
		t.Fatal("first check-in must have no previous observation")
	}
	second := observer.observed[1]
	if second.prev == nil {
		t.Fatal("second check-in must carry the previous observation")
	}
	if !second.prev.Time.Equal(t0) {
		t.Fatalf("previous observation time = %v, want %v", second.prev.Time, t0)
	}
}
