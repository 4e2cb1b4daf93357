package external

import (
	"context"
	"strings"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

// TokenProvider supplies the game service session credential.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type tokenKey struct{}

// WithToken attaches a per-request credential that ContextToken will return.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// ContextToken reads the credential placed by WithToken.
type ContextToken struct{}

func (ContextToken) Token(ctx context.Context) (string, error) {
	if tok, ok := ctx.Value(tokenKey{}).(string); ok && tok != "" {
		return tok, nil
	}
	return "", challenge.Errorf(challenge.KindAuthentication, "no game service credential configured")
}

// StaticToken is a credential fixed at startup (GEOGUESSR_NCFA_TOKEN).
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", challenge.Errorf(challenge.KindAuthentication, "no game service credential configured")
	}
	return tok, nil
}

// ChainTokens returns the first credential any provider yields.
func ChainTokens(providers ...TokenProvider) TokenProvider {
	return tokenChain(providers)
}

type tokenChain []TokenProvider

func (c tokenChain) Token(ctx context.Context) (string, error) {
	lastErr := error(challenge.Errorf(challenge.KindAuthentication, "no game service credential configured"))
	for _, p := range c {
		tok, err := p.Token(ctx)
		if err == nil {
			return tok, nil
		}
		lastErr = err
	}
	return "", lastErr
}
