package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wafer-be/templates"
)

func newTestNotifier(t *testing.T) *Notifier {
	t.Helper()
	site := templates.SiteContext{ConferenceName: "PyCon ZA", BaseURL: "https://za.pycon.org"}
	n, err := NewNotifier(site, NewOutbox(nil))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n
}

func TestRenderTalkStatus(t *testing.T) {
	n := newTestNotifier(t)
	msg, err := n.Render(KindTalkStatus, []string{"speaker@example.com"}, map[string]interface{}{
		"Speaker":     "Alice",
		"Title":       "Go at scale",
		"StatusLabel": "Accepted",
		"Path":        "/talks/abc/",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != `[PyCon ZA] Your talk "Go at scale" is now Accepted` {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.HasPrefix(msg.Body, "Hi Alice,") {
		t.Fatalf("unexpected body start %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "https://za.pycon.org/talks/abc/") {
		t.Fatalf("expected absolute talk url in %q", msg.Body)
	}
	if msg.Kind != KindTalkStatus || len(msg.To) != 1 || msg.CreatedAt.IsZero() {
		t.Fatalf("unexpected envelope %+v", msg)
	}
}

func TestRenderTicketClaimed(t *testing.T) {
	n := newTestNotifier(t)
	msg, err := n.Render(KindTicketClaimed, []string{"a@example.com"}, map[string]interface{}{
		"Name":       "Alice",
		"Username":   "alice",
		"TicketType": "Student",
		"Barcode":    int64(1234),
		"Path":       "/users/alice/",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "[PyCon ZA] Ticket 1234 claimed" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Student ticket (1234)") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

func TestRenderErrors(t *testing.T) {
	n := newTestNotifier(t)
	if _, err := n.Render("welcome", nil, nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := n.Render(KindTalkStatus, nil, map[string]interface{}{"Title": "x"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestOutboxWithoutRedis(t *testing.T) {
	ctx := context.Background()
	n := newTestNotifier(t)
	err := n.Send(ctx, KindTicketClaimed, []string{"a@example.com"}, map[string]interface{}{
		"Name": "A", "Username": "a", "TicketType": "T", "Barcode": 1, "Path": "/",
	})
	if err != nil {
		t.Fatalf("Send without redis should drop silently, got %v", err)
	}

	outbox := NewOutbox(nil)
	if outbox.Available() {
		t.Fatalf("outbox without client should be unavailable")
	}
	if size, err := outbox.Len(ctx); err != nil || size != 0 {
		t.Fatalf("Len = %d, %v", size, err)
	}
	if _, ok, err := outbox.Pop(ctx); ok || err != nil {
		t.Fatalf("Pop = %v, %v", ok, err)
	}

	var nilOutbox *Outbox
	if err := nilOutbox.Push(ctx, Notification{Kind: "x"}); err != nil {
		t.Fatalf("nil outbox Push: %v", err)
	}
}
