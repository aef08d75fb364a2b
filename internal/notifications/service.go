package notifications

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/sendgrid"
)

const (
	emailOutcomeSent    = "sent"
	emailOutcomeSkipped = "skipped"
	emailOutcomeFailed  = "failed"
)

// Email is one idempotent notification keyed by (Type, ReferenceID).
type Email struct {
	Type          enums.EmailType
	ReferenceID   string
	Recipient     string
	RecipientName string
	Vars          Vars
}

// Dispatcher sends each (type, reference) email at most once per ledger row.
type Dispatcher struct {
	repo    Repository
	sender  sendgrid.Sender
	metrics *metrics.FulfilmentMetrics
	logg    *logger.Logger
}

// DispatcherParams wires the dispatcher.
type DispatcherParams struct {
	Repo    Repository
	Sender  sendgrid.Sender
	Metrics *metrics.FulfilmentMetrics
	Logger  *logger.Logger
}

// NewDispatcher wires the notification dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sent email repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{repo: params.Repo, sender: params.Sender, metrics: params.Metrics, logg: logg}, nil
}

// EnsureSent sends the email unless the ledger already holds it, then records it.
// A crash between the send and the insert can repeat the send on retry; a lost
// notification is the worse failure.
func (d *Dispatcher) EnsureSent(ctx context.Context, email Email) (bool, error) {
	if !email.Type.IsValid() {
		return false, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown email type %q", email.Type)
	}
	if strings.TrimSpace(email.ReferenceID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "email reference id required")
	}
	if strings.TrimSpace(email.Recipient) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "email recipient required")
	}
	ctx = d.logg.WithFields(ctx, map[string]any{
		"email_type":   string(email.Type),
		"reference_id": email.ReferenceID,
	})

	sent, err := d.repo.Exists(ctx, email.Type, email.ReferenceID)
	if err != nil {
		d.metrics.IncEmail(string(email.Type), emailOutcomeFailed)
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sent email ledger")
	}
	if sent {
		d.metrics.IncEmail(string(email.Type), emailOutcomeSkipped)
		d.logg.Info(ctx, "email already sent")
		return false, nil
	}

	vars := email.Vars
	if vars.RecipientName == "" {
		vars.RecipientName = "there"
	}
	subject, plain, html, err := Render(email.Type, vars)
	if err != nil {
		d.metrics.IncEmail(string(email.Type), emailOutcomeFailed)
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render email")
	}
	if err := d.sender.Send(ctx, sendgrid.Message{
		To:        email.Recipient,
		ToName:    email.RecipientName,
		Subject:   subject,
		PlainText: plain,
		HTML:      html,
	}); err != nil {
		d.metrics.IncEmail(string(email.Type), emailOutcomeFailed)
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}

	if err := d.repo.Record(ctx, &models.SentEmail{
		EmailType:   email.Type,
		ReferenceID: email.ReferenceID,
		Recipient:   email.Recipient,
	}); err != nil {
		d.metrics.IncEmail(string(email.Type), emailOutcomeFailed)
		return true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sent email")
	}
	d.metrics.IncEmail(string(email.Type), emailOutcomeSent)
	d.logg.Info(ctx, "email sent")
	return true, nil
}

// SideEffect is one best-effort action following a committed transition.
type SideEffect struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunSideEffects runs every effect regardless of earlier failures, logs each
// failure and returns them combined. Callers treat the result as informational.
func RunSideEffects(ctx context.Context, logg *logger.Logger, effects ...SideEffect) error {
	if logg == nil {
		logg = logger.Nop()
	}
	var errs error
	for _, effect := range effects {
		if effect.Run == nil {
			continue
		}
		if err := effect.Run(ctx); err != nil {
			logg.Error(logg.WithField(ctx, "side_effect", effect.Name), "side effect failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", effect.Name, err))
		}
	}
	return errs
}
