// Package mail provides the delivery transports used for discount
// notifications: SMTP or SES for email, SNS for SMS.
package mail

import "context"

// EmailSender delivers a single email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single SMS message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}
