package telemetry

// Config controls tracing.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled installs an SDK tracer provider; otherwise spans are no-ops.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector host:port. Spans are recorded but not
	// exported when empty.
	Endpoint string

	// Insecure disables TLS towards Endpoint.
	Insecure bool

	// SampleRate is the fraction of traces sampled, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns a disabled configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "nauru",
		ServiceVersion: "dev",
		SampleRate:     1.0,
	}
}
