package ports

import "net/http"

// HTTPClient is what the delivery adapter needs to POST batches.
// *http.Client satisfies it; tests substitute a round-tripper.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
