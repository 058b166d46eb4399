package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "1234", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestTokens_Static(t *testing.T) {
	md, err := NewTokens("1234").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"authorization": "Bearer 1234"}, md)

	md, err = NewTokens("").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Empty(t, md)
	require.False(t, NewTokens("").RequireTransportSecurity())
}

func TestTokens_Reuse(t *testing.T) {
	src := &countingSource{}
	tokens := NewTokensFrom(src)
	for i := 0; i < 3; i++ {
		md, err := tokens.GetRequestMetadata(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Bearer 1234", md["authorization"])
	}
	require.Equal(t, 1, src.calls)

	_, err := NewTokensFrom(&countingSource{err: errors.New("no pin")}).GetRequestMetadata(context.Background())
	require.Error(t, err)
}
