package audit

import (
	"context"
	"sync"

	"github.com/onsite-hq/onsite/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

// recordEvent drops events until Initialize is called so library consumers
// and tests need not wire a repository.
func recordEvent(ctx context.Context, event *model.AuditEvent) error {
	if auditRepo == nil {
		return nil
	}
	return auditRepo.RecordEvent(ctx, event)
}

const (
	EventTypeCheckInAdmitted      = "check_in_admitted"
	EventTypeCheckInRejected      = "check_in_rejected"
	EventTypeCheckOut             = "check_out"
	EventTypeSessionForceClosed   = "session_force_closed"
	EventTypeVerificationCreated  = "verification_created"
	EventTypeVerificationResolved = "verification_resolved"
	EventTypeVerificationExpired  = "verification_expired"
	EventTypeFraudAlertRaised     = "fraud_alert_raised"
)

type CheckInRecord struct {
	EmployeeID uint
	SessionID  uint
	GeofenceID uint
	Lat        float64
	Lng        float64
	Admitted   bool
	Reason     string
}

type CheckOutRecord struct {
	EmployeeID uint
	SessionID  uint
	Forced     bool
	Reason     string
}

type VerificationRecord struct {
	EmployeeID uint
	SessionID  uint
	EventType  string
	Reason     string
}

type FraudAlertRecord struct {
	EmployeeID uint
	AlertID    uint
	RuleType   string
	Severity   string
}

func RecordCheckIn(ctx context.Context, record CheckInRecord) error {
	eventType := EventTypeCheckInRejected
	if record.Admitted {
		eventType = EventTypeCheckInAdmitted
	}
	return recordEvent(ctx, &model.AuditEvent{
		EmployeeID: record.EmployeeID,
		EventType:  eventType,
		SessionID:  record.SessionID,
		GeofenceID: record.GeofenceID,
		Lat:        record.Lat,
		Lng:        record.Lng,
		Reason:     record.Reason,
	})
}

func RecordCheckOut(ctx context.Context, record CheckOutRecord) error {
	eventType := EventTypeCheckOut
	if record.Forced {
		eventType = EventTypeSessionForceClosed
	}
	return recordEvent(ctx, &model.AuditEvent{
		EmployeeID: record.EmployeeID,
		EventType:  eventType,
		SessionID:  record.SessionID,
		Reason:     record.Reason,
	})
}

func RecordVerification(ctx context.Context, record VerificationRecord) error {
	return recordEvent(ctx, &model.AuditEvent{
		EmployeeID: record.EmployeeID,
		EventType:  record.EventType,
		SessionID:  record.SessionID,
		Reason:     record.Reason,
	})
}

func RecordFraudAlert(ctx context.Context, record FraudAlertRecord) error {
	return recordEvent(ctx, &model.AuditEvent{
		EmployeeID: record.EmployeeID,
		EventType:  EventTypeFraudAlertRaised,
		SessionID:  record.AlertID,
		Reason:     record.RuleType + "/" + record.Severity,
	})
}
