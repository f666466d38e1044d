package config

const (
	// ValidatingWebhookServicePath is the path for the resource validation webhook
	ValidatingWebhookServicePath = "/validate"
	// LivenessServicePath is the path for the liveness probe
	LivenessServicePath = "/health/liveness"
	// ReadinessServicePath is the path for the readiness probe
	ReadinessServicePath = "/health/readiness"
	// MetricsServicePath is the path for prometheus metrics
	MetricsServicePath = "/metrics"
)

const (
	// WebhookServerPort is the default port the admission server listens on
	WebhookServerPort = ":9443"
)
