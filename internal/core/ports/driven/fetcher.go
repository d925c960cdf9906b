package driven

import "context"

// WebFetcher downloads a page and returns its paragraph text.
type WebFetcher interface {
	// Fetch returns the text of every paragraph element joined by single spaces.
	// A non-2xx status or transport failure is a *domain.NetworkError.
	Fetch(ctx context.Context, url string) (string, error)
}
