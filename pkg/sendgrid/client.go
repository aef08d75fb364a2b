// Package sendgrid delivers transactional email through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

const (
	sendEndpoint = "/v3/mail/send"
	defaultHost  = "https://api.sendgrid.com"
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is one rendered email.
type Message struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers a message synchronously and reports failure.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends through the SendGrid HTTP API.
type Client struct {
	apiKey string
	host   string
	from   *mail.Email
}

// NewSender returns a SendGrid-backed sender, or a logging sender when dry-run
// is enabled.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if cfg.DryRun {
		return &LogSender{logg: logg}, nil
	}
	return NewClient(cfg)
}

func NewClient(cfg config.SendgridConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = defaultHost
	}
	return &Client{
		apiKey: apiKey,
		host:   host,
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}, nil
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	body := mail.NewSingleEmail(c.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.PlainText, msg.HTML)

	request := sendgrid.GetRequest(c.apiKey, sendEndpoint, c.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(body)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject})
	s.logg.Info(ctx, "email dry-run")
	return nil
}
