package mail

import (
	"crypto/tls"

	"gopkg.in/gomail.v2"
)

type SMTPMailSender struct {
	*gomail.Dialer
	From string
}

func (s *SMTPMailSender) Send(message *Message) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.From)
	msg.SetHeader("To", message.To...)
	if len(message.Cc) > 0 {
		msg.SetHeader("Cc", message.Cc...)
	}
	msg.SetHeader("Subject", message.Subject)
	if message.IsHTML {
		msg.SetBody("text/html", message.Body)
	} else {
		msg.SetBody("text/plain", message.Body)
	}
	for _, file := range message.Attachments {
		msg.Attach(file)
	}
	return s.DialAndSend(msg)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

func NewSMTPMailSender(smtpCfg SMTPConfig, from string) *SMTPMailSender {
	dialer := gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.Username, smtpCfg.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName:         smtpCfg.Host,
		InsecureSkipVerify: true,
	}
	return &SMTPMailSender{
		Dialer: dialer,
		From:   from,
	}
}
