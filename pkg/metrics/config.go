package metrics

// Config holds configuration for the Prometheus provider
type Config struct {
	// Namespace prefixes every metric name
	Namespace string

	// HTTPRequestBuckets are the histogram buckets of HTTP request durations, in seconds
	HTTPRequestBuckets []float64

	// DBQueryBuckets are the histogram buckets of database query durations, in seconds
	DBQueryBuckets []float64
}

var (
	defaultHTTPBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	defaultDBBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// DefaultConfig returns the configuration used for a nil Config
func DefaultConfig() *Config {
	c := &Config{Namespace: "simplifyspec"}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills empty bucket lists
func (c *Config) ApplyDefaults() {
	if len(c.HTTPRequestBuckets) == 0 {
		c.HTTPRequestBuckets = defaultHTTPBuckets
	}
	if len(c.DBQueryBuckets) == 0 {
		c.DBQueryBuckets = defaultDBBuckets
	}
}
