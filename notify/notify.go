// Package notify renders notification mails and queues them on a redis list
// for a mailer to deliver.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"wafer-be/templates"
)

const (
	KindTalkStatus    = "talk_status"
	KindTicketClaimed = "ticket_claimed"
)

var ErrUnknownKind = errors.New("unknown notification kind")

//go:embed mail/*.tmpl
var mailFS embed.FS

// Notification is the outbox payload
type Notification struct {
	Kind      string    `json:"kind"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier renders mails with the site context and pushes them to an outbox
type Notifier struct {
	tmpl   *template.Template
	outbox *Outbox
}

func NewNotifier(site templates.SiteContext, outbox *Outbox) (*Notifier, error) {
	funcs := template.FuncMap{
		"conference_name": func() string { return site.ConferenceName },
		"base_url":        func() string { return site.BaseURL },
		"absolute_url":    site.AbsoluteURL,
	}
	tmpl, err := template.New("mail").Option("missingkey=error").Funcs(funcs).ParseFS(mailFS, "mail/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Notifier{tmpl: tmpl, outbox: outbox}, nil
}

// Render builds the notification of kind for data without queueing it
func (n *Notifier) Render(kind string, to []string, data map[string]interface{}) (Notification, error) {
	subject := n.tmpl.Lookup(kind + ".subject")
	body := n.tmpl.Lookup(kind + ".body")
	if subject == nil || body == nil {
		return Notification{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var subj, text bytes.Buffer
	if err := subject.Execute(&subj, data); err != nil {
		return Notification{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := body.Execute(&text, data); err != nil {
		return Notification{}, fmt.Errorf("render %s body: %w", kind, err)
	}

	return Notification{
		Kind:      kind,
		To:        to,
		Subject:   strings.TrimSpace(subj.String()),
		Body:      strings.TrimLeft(text.String(), "\n"),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Send renders and queues a notification
func (n *Notifier) Send(ctx context.Context, kind string, to []string, data map[string]interface{}) error {
	msg, err := n.Render(kind, to, data)
	if err != nil {
		return err
	}
	return n.outbox.Push(ctx, msg)
}
