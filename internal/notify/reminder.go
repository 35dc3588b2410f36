package notify

import (
	"bizdesk/pkg/domain"
	"context"
	"fmt"
	"html"
	"time"
)

// TestReminderSubject is the subject of the test reminder email.
const TestReminderSubject = "Test Project Due Date Reminder from Syntech Software"

// DeliveryError reports a failed test reminder. It matches both
// domain.ErrDeliveryFailure and the transport error.
type DeliveryError struct {
	Err error
}

func (e DeliveryError) Error() string {
	return "Failed to send test reminder email. Error: " + e.Err.Error()
}

func (e DeliveryError) Unwrap() []error { return []error{domain.ErrDeliveryFailure, e.Err} }

// NewTestReminder builds the test reminder addressed to to, with a due date
// five days after now.
func NewTestReminder(to string, now time.Time) Message {
	due := now.AddDate(0, 0, 5).Format(time.DateOnly)
	body := fmt.Sprintf(`Dear User,

This is a test reminder from your Syntech Software Project Management App.

A project is due in 5 days.

Project Name: Test Project Reminder
Due Date: %s

This email confirms that your notification settings are working correctly.

Best regards,
The Syntech Software Team
`, due)
	return Message{To: to, Subject: TestReminderSubject, Body: body}
}

// SendTestReminder mails the test reminder and returns the confirmation shown
// to the caller.
func SendTestReminder(ctx context.Context, mailer Mailer, to string, now time.Time) (string, error) {
	if to == "" {
		return "", domain.InputError{Field: "email_for_notifications", Reason: "Notification email not configured for this user."}
	}
	if err := mailer.Send(ctx, NewTestReminder(to, now)); err != nil {
		return "", DeliveryError{Err: err}
	}
	if mailer.Simulated() {
		return fmt.Sprintf("Test project reminder email simulated successfully to %s. (SMTP not configured)", to), nil
	}
	return fmt.Sprintf("Test project reminder email sent to %s!", to), nil
}

// ProjectReminder builds the due-soon email for project.
func ProjectReminder(to, greeting string, project domain.Project, leadDays int) Message {
	if greeting == "" {
		greeting = "User"
	}
	client := project.ClientName
	if client == "" {
		client = "Internal"
	}
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Just a friendly reminder from your Syntech Software application:</p>
<p>Project <strong>"%s"</strong> for client <strong>%s</strong> is due on <strong>%s</strong>.</p>
<p>This is %d days from now. Please review its status and ensure everything is on track!</p>
<p>Best regards,<br>Your Syntech Software App</p>
`, html.EscapeString(greeting), html.EscapeString(project.ProjectName), html.EscapeString(client), project.EndDate, leadDays)
	return Message{
		To:      to,
		Subject: "[Syntech Software] Project Due Soon: " + singleLine(project.ProjectName),
		Body:    body,
		HTML:    true,
	}
}
