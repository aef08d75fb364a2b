package enums

// ListingStatus is the marketplace state of a listing.
type ListingStatus string

const (
	ListingStatusPending ListingStatus = "pending"
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
)
