package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/queue"
)

type smsCall struct {
	To   string
	Body string
}

type mockSMS struct {
	mu       sync.Mutex
	calls    []smsCall
	failures int
}

func (m *mockSMS) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, smsCall{To: to, Body: body})
	if m.failures > 0 {
		m.failures--
		return errors.New("carrier unavailable")
	}
	return nil
}

type mockEmail struct {
	mu    sync.Mutex
	calls []smsCall
}

func (m *mockEmail) SendEmail(_ context.Context, to, _ string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, smsCall{To: to, Body: body})
	return nil
}

func newManager(sms *mockSMS, email *mockEmail) *Manager {
	return NewManager(email, sms, NewTemplateEngine(), zerolog.Nop())
}

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TemplateTokenCalled, map[string]string{
		"patient_name": "Alice",
		"token_number": "7",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if body != "Hello Alice, token 7 has been called. Please proceed to the consultation room." {
		t.Fatalf("body = %q", body)
	}

	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestSend_RetriesOnceThenSucceeds(t *testing.T) {
	sms := &mockSMS{failures: 1}
	m := newManager(sms, &mockEmail{})

	err := m.Send(context.Background(), &Notification{
		Channel: ChannelSMS, Recipient: "+6512345678", Body: "hi",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sms.calls) != 2 {
		t.Fatalf("attempts = %d, want 2", len(sms.calls))
	}

	log := m.Log()
	if len(log) != 1 || log[0].Status != StatusSent || log[0].Attempts != 2 {
		t.Fatalf("log = %+v", log)
	}
}

func TestSend_ExhaustedRetriesRecordFailure(t *testing.T) {
	sms := &mockSMS{failures: 10}
	m := newManager(sms, &mockEmail{})

	err := m.Send(context.Background(), &Notification{
		Channel: ChannelSMS, Recipient: "+6512345678", Body: "hi",
	})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	log := m.Log()
	if len(log) != 1 || log[0].Status != StatusFailed || log[0].Error == "" {
		t.Fatalf("log = %+v", log)
	}
}

type stubContacts struct {
	name  string
	phone string
	err   error
}

func (s *stubContacts) ContactInfo(_ context.Context, _ uuid.UUID) (string, string, error) {
	return s.name, s.phone, s.err
}

func TestQueueNotifier_SendsTokenCalledSMS(t *testing.T) {
	sms := &mockSMS{}
	m := newManager(sms, &mockEmail{})
	qn := NewQueueNotifier(m, &stubContacts{name: "Alice", phone: "+6512345678"})

	err := qn.NotifyCalled(context.Background(), &queue.QueueToken{
		PatientID: uuid.New(), TokenNumber: 12,
	})
	if err != nil {
		t.Fatalf("NotifyCalled: %v", err)
	}
	if len(sms.calls) != 1 || sms.calls[0].To != "+6512345678" {
		t.Fatalf("calls = %+v", sms.calls)
	}
	if want := "Hello Alice, token 12 has been called. Please proceed to the consultation room."; sms.calls[0].Body != want {
		t.Fatalf("body = %q", sms.calls[0].Body)
	}
}

func TestQueueNotifier_NoPhoneIsNoop(t *testing.T) {
	sms := &mockSMS{}
	m := newManager(sms, &mockEmail{})
	qn := NewQueueNotifier(m, &stubContacts{name: "Bob"})

	if err := qn.NotifyCalled(context.Background(), &queue.QueueToken{TokenNumber: 1}); err != nil {
		t.Fatalf("NotifyCalled: %v", err)
	}
	if len(sms.calls) != 0 {
		t.Fatal("no SMS expected for patient without a phone number")
	}
}
