package models

// All lists every model owned by the service, in dependency order.
func All() []any {
	return []any{
		&Profile{},
		&Listing{},
		&Order{},
		&OrderEvent{},
		&SentEmail{},
	}
}
