package backend

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the scope required by the enterprise API.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewGoogleTokenSource returns a caching token source from Application
// Default Credentials. Without scopes, CloudPlatformScope is requested.
func NewGoogleTokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	if len(scopes) == 0 {
		scopes = []string{CloudPlatformScope}
	}

	ts, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredential, err)
	}
	return ts, nil
}

// NewStaticTokenSource returns a token source that always yields token.
func NewStaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}
