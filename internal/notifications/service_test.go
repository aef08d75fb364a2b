package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teevo/fulfilment-backend/pkg/db/dbtest"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/sendgrid/sendgridtest"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *sendgridtest.Sender, Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	sender := &sendgridtest.Sender{}
	d, err := NewDispatcher(DispatcherParams{Repo: repo, Sender: sender})
	require.NoError(t, err)
	return d, sender, repo
}

func TestEnsureSentSendsOnce(t *testing.T) {
	d, sender, repo := newTestDispatcher(t)
	ctx := context.Background()
	email := Email{
		Type:        enums.EmailTypeFundsReleased,
		ReferenceID: "order-1",
		Recipient:   "seller@example.com",
		Vars:        Vars{ListingTitle: "Ping G425 Driver", AmountMinorUnits: 10000, Currency: "gbp"},
	}

	sent, err := d.EnsureSent(ctx, email)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = d.EnsureSent(ctx, email)
	require.NoError(t, err)
	assert.False(t, sent)

	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Funds released for Ping G425 Driver", msgs[0].Subject)
	assert.Contains(t, msgs[0].PlainText, "£100.00 has been released")
	assert.Contains(t, msgs[0].HTML, "<p>")

	exists, err := repo.Exists(ctx, enums.EmailTypeFundsReleased, "order-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnsureSentDoesNotRecordFailedSend(t *testing.T) {
	d, sender, repo := newTestDispatcher(t)
	ctx := context.Background()
	sender.Err = errors.New("smtp down")

	_, err := d.EnsureSent(ctx, Email{Type: enums.EmailTypeItemSold, ReferenceID: "order-2", Recipient: "s@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	exists, err := repo.Exists(ctx, enums.EmailTypeItemSold, "order-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureSentValidation(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.EnsureSent(ctx, Email{Type: "BOGUS", ReferenceID: "x", Recipient: "a@b.c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = d.EnsureSent(ctx, Email{Type: enums.EmailTypeItemSold, Recipient: "a@b.c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = d.EnsureSent(ctx, Email{Type: enums.EmailTypeItemSold, ReferenceID: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRunSideEffectsRunsEveryEffect(t *testing.T) {
	ran := 0
	err := RunSideEffects(context.Background(), logger.Nop(),
		SideEffect{Name: "first", Run: func(context.Context) error { ran++; return errors.New("boom") }},
		SideEffect{Name: "second", Run: func(context.Context) error { ran++; return nil }},
		SideEffect{Name: "third", Run: func(context.Context) error { ran++; return errors.New("bang") }},
	)
	assert.Equal(t, 3, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first: boom")
	assert.Contains(t, err.Error(), "third: bang")
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "£100.00", FormatMoney(10000, "gbp"))
	assert.Equal(t, "€4.50", FormatMoney(450, "EUR"))
	assert.Equal(t, "CHF 0.99", FormatMoney(99, "chf"))
}

func TestRenderPackagingRejectedIncludesNotes(t *testing.T) {
	subject, plain, html, err := Render(enums.EmailTypePackagingRejected, Vars{
		RecipientName: "Sam",
		OrderID:       "o1",
		ListingTitle:  "Odyssey putter",
		ReviewNotes:   "Head cover <missing>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Packaging needs another look for order o1", subject)
	assert.Contains(t, plain, "Reviewer notes: Head cover <missing>")
	assert.Contains(t, html, "Head cover &lt;missing&gt;")
}
