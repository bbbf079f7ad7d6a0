// Package metrics provides Prometheus metrics for the annotation store.
package metrics

// Shared metric label values.
const (
	// LabelSuccess is the status label for successful operations.
	LabelSuccess = "success"
	// LabelError is the status label for failed operations.
	LabelError = "error"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms.
	BucketStart100B = 100.0

	// BucketFactor2 is the exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for histogram buckets.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)
