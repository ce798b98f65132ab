package external

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// EmailNotifier delivers booking notices over SMTP.
type EmailNotifier struct {
	dialer    *gomail.Dialer
	from      string
	directory Directory
	logger    *zap.Logger
}

func NewEmailNotifier(host string, port int, user, password, from string, directory Directory, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		dialer:    gomail.NewDialer(host, port, user, password),
		from:      from,
		directory: directory,
		logger:    logger,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) error {
	contact, err := n.directory.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if contact == nil || contact.Email == "" {
		n.logger.Debug("No email address for user, skipping",
			zap.Int64("user_id", userID),
			zap.String("event", event),
		)
		return nil
	}

	subject, body := renderNotice(event, payload)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", contact.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to user %d: %w", userID, err)
	}

	return nil
}
