package enums

// OrderEventSource identifies what triggered a recorded order transition.
type OrderEventSource string

const (
	OrderEventSourceBuyer   OrderEventSource = "buyer"
	OrderEventSourceSeller  OrderEventSource = "seller"
	OrderEventSourceAdmin   OrderEventSource = "admin"
	OrderEventSourcePayment OrderEventSource = "payment_provider"
	OrderEventSourceCarrier OrderEventSource = "carrier"
)
