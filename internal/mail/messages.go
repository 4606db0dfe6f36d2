package mail

import (
	"fmt"
	"time"
)

// SendFraudAlert notifies the operations mailbox that a heuristic fired.
func SendFraudAlert(sender MailSender, toEmail string, employeeID uint, ruleType, severity, description string) error {
	body := fmt.Sprintf(
		"A fraud heuristic fired.\n\nEmployee: %d\nRule: %s\nSeverity: %s\n\n%s\n",
		employeeID, ruleType, severity, description,
	)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("[%s] fraud alert: %s for employee %d", severity, ruleType, employeeID),
		Body:    body,
	})
}

// SendVerificationRequest tells an employee a spot check is pending and when
// it expires.
func SendVerificationRequest(sender MailSender, toEmail string, sessionID uint, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"An identity verification has been requested.\n\nPlease open the app and complete the face check before %s.\nSession: %d\n",
		expiresAt.Format(time.RFC1123), sessionID,
	)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Identity verification required",
		Body:    body,
	})
}
