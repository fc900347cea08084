package driven

import "context"

// ResourceFetcher performs one-shot authenticated requests against the
// service. It is stateless and outside the session lifecycle.
type ResourceFetcher interface {
	// FetchMe returns the body of GET /me for the given access token.
	FetchMe(ctx context.Context, accessToken string) ([]byte, error)

	// FetchMeWith returns the body of GET /me using the current token of a
	// provider, such as a running session.
	FetchMeWith(ctx context.Context, tokens TokenProvider) ([]byte, error)
}
