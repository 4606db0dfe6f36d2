// Package notify delivers engine events to humans. Every event is logged;
// with the smtp backend, fraud alerts go to the operations mailbox and
// verification triggers go to the employee's email.
package notify

import (
	"context"
	"log/slog"

	"github.com/onsite-hq/onsite/internal/config"
	"github.com/onsite-hq/onsite/internal/events"
	"github.com/onsite-hq/onsite/internal/mail"
	"github.com/onsite-hq/onsite/model"
)

// EmployeeEmails resolves an employee id to a mailbox.
type EmployeeEmails interface {
	FindByID(ctx context.Context, id uint) (*model.Employee, error)
}

type Dispatcher struct {
	sender     mail.MailSender
	employees  EmployeeEmails
	alertEmail string
}

// NewDispatcher builds a dispatcher for the configured backend. With the log
// backend sender is nil and events are only logged.
func NewDispatcher(cfg config.NotifyConfig, employees EmployeeEmails) *Dispatcher {
	var sender mail.MailSender
	if cfg.Backend == "smtp" {
		sender = mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, cfg.SMTP.From)
	}
	return &Dispatcher{
		sender:     sender,
		employees:  employees,
		alertEmail: cfg.AlertEmail,
	}
}

// Register subscribes the dispatcher to the event bus.
func (d *Dispatcher) Register(bus *events.Bus) {
	bus.Subscribe(d.Handle)
}

func (d *Dispatcher) Handle(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.TypeFraudAlertRaised:
		d.handleFraudAlert(ctx, event)
	case events.TypeVerificationTriggered:
		d.handleVerificationTriggered(ctx, event)
	case events.TypeCheckedIn, events.TypeCheckedOut:
		slog.Info("Attendance event", "type", event.Type, "employee", event.EmployeeID)
	}
}

func (d *Dispatcher) handleFraudAlert(ctx context.Context, event events.Event) {
	payload, ok := event.Payload.(events.FraudAlertRaisedPayload)
	if !ok {
		return
	}
	slog.Warn("Fraud alert notification",
		"employee", event.EmployeeID, "rule", payload.RuleType, "severity", payload.Severity)

	if d.sender == nil || d.alertEmail == "" {
		return
	}
	err := mail.SendFraudAlert(d.sender, d.alertEmail,
		event.EmployeeID, payload.RuleType, payload.Severity, "See the fraud alerts dashboard for evidence.")
	if err != nil {
		slog.Error("Failed to send fraud alert email", "employee", event.EmployeeID, "error", err)
	}
}

func (d *Dispatcher) handleVerificationTriggered(ctx context.Context, event events.Event) {
	payload, ok := event.Payload.(events.VerificationTriggeredPayload)
	if !ok {
		return
	}
	slog.Info("Verification requested",
		"employee", event.EmployeeID, "session", payload.SessionID, "expiresAt", payload.ExpiresAt)

	if d.sender == nil {
		return
	}
	employee, err := d.employees.FindByID(ctx, event.EmployeeID)
	if err != nil || employee == nil || employee.Email == "" {
		return
	}
	if err := mail.SendVerificationRequest(d.sender, employee.Email, payload.SessionID, payload.ExpiresAt); err != nil {
		slog.Error("Failed to send verification request email", "employee", event.EmployeeID, "error", err)
	}
}
