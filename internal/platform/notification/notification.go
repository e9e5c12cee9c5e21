// Package notification delivers patient-facing messages (SMS and email)
// with template rendering, simple retry, and an in-memory delivery log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/queue"
)

// Channel is the delivery mechanism for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one outbound message and its delivery outcome.
type Notification struct {
	ID         string     `json:"id"`
	Channel    Channel    `json:"channel"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body"`
	TemplateID string     `json:"template_id,omitempty"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EmailSender sends email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// Built-in template ids.
const (
	TemplateTokenCalled  = "token-called"
	TemplateInvoicePaid  = "invoice-paid"
	TemplateVisitSummary = "visit-summary"
)

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateTokenCalled,
			Body:    "Hello {{patient_name}}, token {{token_number}} has been called. Please proceed to the consultation room.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateInvoicePaid,
			Subject: "Payment received",
			Body:    "Dear {{patient_name}}, we received your payment of {{amount}} for invoice {{invoice_id}}. Thank you.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateVisitSummary,
			Subject: "Visit summary for {{patient_name}}",
			Body:    "Dear {{patient_name}}, here is a summary of your visit on {{visit_date}}: {{summary}}",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Get returns a template by id.
func (e *TemplateEngine) Get(id string) (*Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[id]
	return t, ok
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} substitution. Placeholders absent from data are
// left untouched.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Manager dispatches notifications and keeps an in-memory delivery log.
// Each send is retried once on failure.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu  sync.RWMutex
	log map[string]*Notification
}

func NewManager(email EmailSender, sms SMSSender, templates *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{
		email:     email,
		sms:       sms,
		templates: templates,
		logger:    logger,
		log:       make(map[string]*Notification),
	}
}

const maxAttempts = 2

// Send delivers a notification, retrying once, and records the outcome.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()

	var sendErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		n.Attempts = attempt
		sendErr = m.deliver(ctx, n)
		if sendErr == nil {
			break
		}
	}

	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
		m.logger.Warn().Err(sendErr).
			Str("channel", string(n.Channel)).
			Str("recipient", n.Recipient).
			Msg("notification delivery failed")
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.log[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelEmail:
		if m.email == nil {
			return errors.New("no email sender configured")
		}
		return m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		if m.sms == nil {
			return errors.New("no sms sender configured")
		}
		return m.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

// SendTemplate renders a template and sends the result.
func (m *Manager) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) error {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	tpl, _ := m.templates.Get(templateID)

	return m.Send(ctx, &Notification{
		Channel:    tpl.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
	})
}

// Log returns a copy of the delivery log, newest first.
func (m *Manager) Log() []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Notification, 0, len(m.log))
	for _, n := range m.log {
		out = append(out, n)
	}
	return out
}

// PatientContact resolves a patient's display name and phone number.
type PatientContact interface {
	ContactInfo(ctx context.Context, patientID uuid.UUID) (name, phone string, err error)
}

// QueueNotifier tells patients their token was called, over SMS. It
// satisfies the queue engine's notifier contract; callers treat failures
// as non-fatal.
type QueueNotifier struct {
	manager  *Manager
	contacts PatientContact
}

func NewQueueNotifier(manager *Manager, contacts PatientContact) *QueueNotifier {
	return &QueueNotifier{manager: manager, contacts: contacts}
}

func (qn *QueueNotifier) NotifyCalled(ctx context.Context, token *queue.QueueToken) error {
	name, phone, err := qn.contacts.ContactInfo(ctx, token.PatientID)
	if err != nil {
		return err
	}
	if phone == "" {
		return nil // Nothing to deliver to.
	}
	return qn.manager.SendTemplate(ctx, TemplateTokenCalled, phone, map[string]string{
		"patient_name": name,
		"token_number": strconv.Itoa(token.TokenNumber),
	})
}
