package token

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/credentials"
)

// Tokens sends the auth code of a file group as an oauth2 bearer token.
type Tokens struct {
	source oauth2.TokenSource
}

var _ credentials.PerRPCCredentials = (*Tokens)(nil)

// NewTokens a fixed auth code, e.g. PIN2.
func NewTokens(authCode string) *Tokens {
	return &Tokens{source: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: authCode,
		TokenType:   "Bearer",
	})}
}

// NewTokensFrom caches the tokens of src until they expire.
func NewTokensFrom(src oauth2.TokenSource) *Tokens {
	return &Tokens{source: oauth2.ReuseTokenSource(nil, src)}
}

func (t *Tokens) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	tok, err := t.source.Token()
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	if tok.AccessToken == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"authorization": tok.Type() + " " + tok.AccessToken}, nil
}

// RequireTransportSecurity the card sits on the same host.
func (t *Tokens) RequireTransportSecurity() bool {
	return false
}
