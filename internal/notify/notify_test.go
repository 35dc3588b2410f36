package notify

import (
	"bizdesk/internal/settings"
	"bizdesk/pkg/domain"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu        sync.Mutex
	sent      []Message
	err       error
	simulated bool
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Simulated() bool { return m.simulated }

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var testNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func TestNewMailerSelectsTransport(t *testing.T) {
	assert.IsType(t, &SimulatedMailer{}, NewMailer(Config{}, nil))
	assert.IsType(t, &ResendMailer{}, NewMailer(Config{ResendAPIKey: "re_123"}, nil))

	m := NewMailer(Config{SMTPHost: "smtp.example.com", SMTPUser: "me@example.com", ResendAPIKey: "re_123"}, nil)
	smtpMailer, ok := m.(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:587", smtpMailer.addr)
	assert.Equal(t, "me@example.com", smtpMailer.from)
	assert.False(t, m.Simulated())
}

func TestSendTestReminderSimulated(t *testing.T) {
	msg, err := SendTestReminder(context.Background(), NewSimulatedMailer(nil), "renias0101@gmail.com", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Test project reminder email simulated successfully to renias0101@gmail.com. (SMTP not configured)", msg)
}

func TestSendTestReminderDelivered(t *testing.T) {
	mailer := &recordingMailer{}
	msg, err := SendTestReminder(context.Background(), mailer, "ops@example.com", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Test project reminder email sent to ops@example.com!", msg)
	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, TestReminderSubject, sent.Subject)
	assert.Contains(t, sent.Body, "A project is due in 5 days.")
	assert.Contains(t, sent.Body, "Due Date: 2024-06-15")
	assert.False(t, sent.HTML)
}

func TestSendTestReminderFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("connection refused")}
	_, err := SendTestReminder(context.Background(), mailer, "ops@example.com", testNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailure)
	assert.Equal(t, "Failed to send test reminder email. Error: connection refused", err.Error())

	_, err = SendTestReminder(context.Background(), mailer, "", testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSMTPMailerFormatsMessage(t *testing.T) {
	m := NewMailer(Config{SMTPHost: "smtp.example.com", SMTPPort: "2525", From: "noreply@example.com"}, nil).(*SMTPMailer)
	var gotAddr, gotFrom string
	var gotAuth smtp.Auth
	var gotBody string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotBody = addr, a, from, string(msg)
		return nil
	}
	require.NoError(t, m.Send(context.Background(), Message{To: "ops@example.com", Subject: "Hi", Body: "<p>x</p>", HTML: true}))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.True(t, strings.HasPrefix(gotBody, "From: noreply@example.com\r\nTo: ops@example.com\r\nSubject: Hi\r\n"))
	assert.Contains(t, gotBody, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(gotBody, "\r\n\r\n<p>x</p>"))
}

func TestSchedulerKeepsProjectNameOnSubjectLine(t *testing.T) {
	m := NewMailer(Config{SMTPHost: "smtp.example.com", From: "noreply@example.com"}, nil).(*SMTPMailer)
	var raw string
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		raw = string(msg)
		return nil
	}
	projects := projectList{projects: []domain.Project{
		{ID: 1, ProjectName: "Site\r\nBcc: attacker@evil.example", EndDate: "2024-06-15", Status: "Planning"},
	}}
	s := NewScheduler(projects, settings.NewProvider(settings.Defaults(), nil), m, SchedulerConfig{})

	summary, err := s.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Sent: 1}, summary)

	header, _, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, header, "\r\nSubject: [Syntech Software] Project Due Soon: Site Bcc: attacker@evil.example\r\n")
	for _, line := range strings.Split(header, "\r\n") {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), "unexpected header line %q", line)
	}
}

func TestSMTPMailerRejectsLineBreaks(t *testing.T) {
	m := NewMailer(Config{SMTPHost: "smtp.example.com"}, nil).(*SMTPMailer)
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}
	err := m.Send(context.Background(), Message{To: "ops@example.com\r\nBcc: x@example.com", Subject: "Hi"})
	assert.ErrorIs(t, err, ErrHeaderLineBreak)
	assert.False(t, called)

	var raw string
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		raw = string(msg)
		return nil
	}
	require.NoError(t, m.Send(context.Background(), Message{To: "ops@example.com", Subject: "Überfällig\nX-Evil: 1"}))
	assert.NotContains(t, raw, "\nX-Evil")
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
}

func TestSMTPMailerTimeout(t *testing.T) {
	m := NewMailer(Config{SMTPHost: "smtp.example.com", Timeout: 20 * time.Millisecond}, nil).(*SMTPMailer)
	release := make(chan struct{})
	defer close(release)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	err := m.Send(context.Background(), Message{To: "ops@example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResendMailer(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got.To[0] == "bounce@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	m := NewMailer(Config{ResendAPIKey: "re_123", ResendEndpoint: srv.URL, From: "noreply@example.com"}, nil)
	require.NoError(t, m.Send(context.Background(), Message{To: "ops@example.com", Subject: "Hi", Body: "plain"}))
	assert.Equal(t, "Bearer re_123", auth)
	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, "plain", got.Text)
	assert.Empty(t, got.HTML)

	err := m.Send(context.Background(), Message{To: "bounce@example.com", Subject: "Hi", Body: "x"})
	assert.EqualError(t, err, "resend API error: status 422")
}

type projectList struct {
	projects []domain.Project
	err      error
}

func (p projectList) ListProjects(context.Context) ([]domain.Project, error) { return p.projects, p.err }

func TestSchedulerRunOnce(t *testing.T) {
	projects := projectList{projects: []domain.Project{
		{ID: 1, ProjectName: "Website Redesign", ClientName: "John Doe", EndDate: "2024-06-15", Status: "In Progress"},
		{ID: 2, ProjectName: "Finished", EndDate: "2024-06-15", Status: "Completed"},
		{ID: 3, ProjectName: "Dropped", EndDate: "2024-06-15", Status: "Cancelled"},
		{ID: 4, ProjectName: "Later", EndDate: "2024-06-16", Status: "Planning"},
		{ID: 5, ProjectName: "Internal Tools", EndDate: "2024-06-15", Status: "Planning"},
	}}
	mailer := &recordingMailer{}
	s := NewScheduler(projects, settings.NewProvider(settings.Defaults(), nil), mailer, SchedulerConfig{})

	summary, err := s.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 2, Sent: 2}, summary)
	require.Len(t, mailer.sent, 2)
	first := mailer.sent[0]
	assert.Equal(t, "renias0101@gmail.com", first.To)
	assert.Equal(t, "[Syntech Software] Project Due Soon: Website Redesign", first.Subject)
	assert.Contains(t, first.Body, "Hello Renias,")
	assert.Contains(t, first.Body, "<strong>John Doe</strong>")
	assert.Contains(t, mailer.sent[1].Body, "<strong>Internal</strong>")
	assert.True(t, first.HTML)
}

func TestSchedulerCountsFailures(t *testing.T) {
	projects := projectList{projects: []domain.Project{{ProjectName: "A", EndDate: "2024-06-12"}}}
	mailer := &recordingMailer{err: errors.New("down")}
	s := NewScheduler(projects, settings.NewProvider(settings.Defaults(), nil), mailer, SchedulerConfig{LeadDays: 2})
	summary, err := s.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Failed: 1}, summary)

	noEmail := settings.Defaults()
	noEmail.EmailForNotifications = ""
	s = NewScheduler(projects, settings.NewProvider(noEmail, nil), &recordingMailer{}, SchedulerConfig{LeadDays: 2})
	summary, err = s.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1}, summary)

	s = NewScheduler(projectList{err: errors.New("db down")}, settings.NewProvider(settings.Defaults(), nil), mailer, SchedulerConfig{})
	_, err = s.RunOnce(context.Background(), testNow)
	assert.EqualError(t, err, "db down")
}

func TestSchedulerStartStopsOnCancel(t *testing.T) {
	projects := projectList{projects: []domain.Project{{ProjectName: "A", EndDate: "2024-06-15"}}}
	mailer := &recordingMailer{}
	s := NewScheduler(projects, settings.NewProvider(settings.Defaults(), nil), mailer,
		SchedulerConfig{Interval: 5 * time.Millisecond},
		WithSchedulerClock(func() time.Time { return testNow }))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return mailer.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}
