// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic used around
// every network edge of the pipeline.
//
// The package supports:
//   - Circuit breakers for external calls (model APIs, embedding endpoint, feeds, rendered pages, SMTP)
//   - Retry logic with exponential backoff, jitter, and Retry-After hints
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ModelAPIConfig("claude"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callModelAPI()
//	})
//
//	retryConfig := retry.DefaultConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
