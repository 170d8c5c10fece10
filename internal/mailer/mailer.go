// Package mailer renders transactional emails and delivers them through a
// queue so requests never wait on the mail provider.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// Email is a rendered message.
type Email struct {
	To      string `json:"to"`
	ToName  string `json:"toName"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Sender delivers an email synchronously.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// SendgridSender sends through the SendGrid v3 API.
type SendgridSender struct {
	key  string
	from *sgmail.Email
}

// NewSendgridSender creates a sender with a default From address.
func NewSendgridSender(key, fromAddress, fromName string) *SendgridSender {
	return &SendgridSender{key: key, from: sgmail.NewEmail(fromName, fromAddress)}
}

func (s *SendgridSender) prepare(e Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = e.Subject
	p.AddTos(sgmail.NewEmail(e.ToName, e.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", e.Text),
		sgmail.NewContent("text/html", e.HTML),
	)
	return m
}

// Send posts the email. Provider-side rejections are returned as errors.
func (s *SendgridSender) Send(_ context.Context, e Email) error {
	req := sendgrid.GetRequest(s.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(e))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogSender prints emails instead of sending them. Used when no API key is set.
type LogSender struct {
	std *log.Logger
}

// NewLogSender creates a LogSender writing to std.
func NewLogSender(std *log.Logger) *LogSender {
	return &LogSender{std: std}
}

// Send logs the email.
func (s *LogSender) Send(_ context.Context, e Email) error {
	s.std.Printf("email to=%s subject=%q\n%s", e.To, e.Subject, e.Text)
	return nil
}
