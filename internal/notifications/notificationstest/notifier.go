// Package notificationstest wires a notifier against a test database.
package notificationstest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teevo/fulfilment-backend/internal/listings"
	"github.com/teevo/fulfilment-backend/internal/notifications"
	"github.com/teevo/fulfilment-backend/internal/users"
	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/sendgrid/sendgridtest"
)

// AdminEmail is the operations inbox used by NewOrderNotifier.
const AdminEmail = "ops@teevo.test"

// NewOrderNotifier returns a notifier whose mail lands in the returned sender.
func NewOrderNotifier(t testing.TB, client *db.Client) (*notifications.OrderNotifier, *sendgridtest.Sender) {
	t.Helper()
	sender := &sendgridtest.Sender{}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:   notifications.NewRepository(client.DB()),
		Sender: sender,
	})
	require.NoError(t, err)
	directory, err := users.NewDirectory(users.NewRepository(client.DB()))
	require.NoError(t, err)
	notifier, err := notifications.NewOrderNotifier(notifications.OrderNotifierParams{
		Dispatcher: dispatcher,
		Contacts:   directory,
		Titles:     listings.NewRepository(client.DB()),
		AdminEmail: AdminEmail,
	})
	require.NoError(t, err)
	return notifier, sender
}
