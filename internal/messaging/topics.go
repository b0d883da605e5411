package messaging

// Topic constants for the dashboard messaging system
const (
	// TopicWorkersOnline carries liveness reports from the stratum edge to
	// statsd, keyed by mining address.
	TopicWorkersOnline = "workers.online"
)
