package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
	"time"

	"github.com/smukkama/energy-workshop/internal/events"
	"github.com/smukkama/energy-workshop/pkg/config"
)

var templates = template.Must(template.New("simulation_error").Parse(`
Simulation Failed
=================

Team: {{.TeamID}}
Batch: {{.BatchID}}
Time: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}

Error:
{{.Error}}

The team was marked as errored. The remaining teams of the batch keep
running; the team can be simulated again once its configuration is fixed.

---
Energy Workshop Notification System
`))

func init() {
	template.Must(templates.New("detailed_analysis_completed").Parse(`
Cohort Analysis Completed
=========================

Batch: {{.BatchID}}
Time: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}

Every team has completed its simulation and the comparison table was
regenerated. The comparison view now shows the final results.

---
Energy Workshop Notification System
`))
	template.Must(templates.New("detailed_analysis_error").Parse(`
Cohort Analysis Failed
======================

Batch: {{.BatchID}}
Time: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}

Error:
{{.Error}}

Team results are unaffected. The comparison table still holds the
previous analysis.

---
Energy Workshop Notification System
`))
}

var subjects = map[events.Type]func(e events.Event) string{
	events.SimulationError: func(e events.Event) string {
		return fmt.Sprintf("Simulation FAILED - team %d", e.TeamID)
	},
	events.DetailedAnalysisCompleted: func(events.Event) string {
		return "Cohort analysis completed"
	},
	events.DetailedAnalysisError: func(events.Event) string {
		return "Cohort analysis FAILED"
	},
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier emails the facilitator about failures and finished
// analyses.
type EmailNotifier struct {
	config *config.SMTPConfig
	send   SendFunc
	logger *slog.Logger
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail, logger: logger.With("component", "notifier")}
}

// WithSender replaces the SMTP transport
func (n *EmailNotifier) WithSender(send SendFunc) *EmailNotifier {
	n.send = send
	return n
}

// Notifies reports whether an event type produces an email
func Notifies(t events.Type) bool {
	_, ok := subjects[t]
	return ok
}

// Compose renders the subject and body for an event
func Compose(e events.Event) (string, string, error) {
	subject, ok := subjects[e.Type]
	if !ok {
		return "", "", fmt.Errorf("no notification for event type: %s", e.Type)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(e.Type), e); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}
	return subject(e), buf.String(), nil
}

// Notify sends the email for e. Events that do not notify are ignored.
func (n *EmailNotifier) Notify(e events.Event) error {
	if !Notifies(e.Type) {
		return nil
	}
	subject, body, err := Compose(e)
	if err != nil {
		return err
	}
	return n.sendEmail(subject, body)
}

func (n *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if n.config.Username == "" || n.config.Password == "" {
		n.logger.Info("SMTP not configured, skipping email", "subject", subject)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", n.config.From)
	message += fmt.Sprintf("To: %s\r\n", n.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.send(addr, auth, n.config.From, []string{n.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("email sent", "subject", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (n *EmailNotifier) TestConnection() error {
	if n.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()
	return nil
}
