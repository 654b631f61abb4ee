package contracts

// Exchanges
const (
	ExchangeRideTopic  = "ride_topic"
	ExchangeOfferTopic = "offer_topic"
)

// Queues
const (
	QueueRideStatus  = "ride_status"
	QueueOfferEvents = "offer_events"
)

// Routing patterns
const (
	RouteRideStatusPrefix = "ride.status." // {status}
	RouteOfferPrefix      = "offer."       // created|accepted|declined|expired|reassigned
)

// Event types emitted on the notification exchanges. Delivery is
// at-least-once; consumers de-duplicate by Envelope.EventID.
const (
	EventRideRequested      = "ride.requested"
	EventRideDriverAssigned = "ride.driver_assigned"
	EventRideEnroutePickup  = "ride.enroute_pickup"
	EventRideOnboard        = "ride.passenger_onboard"
	EventRideCompleted      = "ride.completed"
	EventRideCancelled      = "ride.cancelled"
	EventOfferCreated       = "offer.created"
	EventOfferResolved      = "offer.resolved"
)
