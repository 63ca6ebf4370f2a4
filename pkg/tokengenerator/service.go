package tokengenerator

import (
	"fmt"
	"time"
)

// Token name constants
const (
	ACCESS_TOKEN_NAME = "access_token"
	TEMP_TOKEN_NAME   = "temp_token"
)

// Default token expiry durations. An access token is long-lived; a temp
// token only needs to survive the gap between the password step and the
// 2FA challenge.
const (
	DefaultAccessTokenExpiry = 100 * time.Hour
	DefaultTempTokenExpiry   = 10 * time.Minute
)

// TokenValue pairs a signed token string with its expiry time.
type TokenValue struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// TokenService issues and verifies the two token shapes the login flow
// uses: full access tokens and pending (temp) tokens.
type TokenService struct {
	generator TokenGenerator

	AccessTokenExpiry time.Duration
	TempTokenExpiry   time.Duration
}

// TokenServiceOption is a function that configures a TokenService
type TokenServiceOption func(*TokenService)

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		ts.AccessTokenExpiry = expiry
	}
}

// WithTempTokenExpiry sets the temporary token expiry duration
func WithTempTokenExpiry(expiry time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		ts.TempTokenExpiry = expiry
	}
}

// NewTokenService creates a new TokenService using the given generator.
func NewTokenService(generator TokenGenerator, options ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		generator:         generator,
		AccessTokenExpiry: DefaultAccessTokenExpiry,
		TempTokenExpiry:   DefaultTempTokenExpiry,
	}

	for _, option := range options {
		option(ts)
	}

	return ts
}

// GenerateToken generates a token of the named shape for the given subject.
func (ts *TokenService) GenerateToken(tokenName, subject string) (TokenValue, error) {
	var expiry time.Duration
	var requires2FA bool

	switch tokenName {
	case ACCESS_TOKEN_NAME:
		expiry = ts.AccessTokenExpiry
	case TEMP_TOKEN_NAME:
		expiry = ts.TempTokenExpiry
		requires2FA = true
	default:
		return TokenValue{}, fmt.Errorf("unknown token name: %s", tokenName)
	}

	tokenStr, expiryTime, err := ts.generator.GenerateToken(subject, expiry, requires2FA)
	if err != nil {
		return TokenValue{}, err
	}
	return TokenValue{Token: tokenStr, Expiry: expiryTime}, nil
}

// IssueAccessToken mints a full session token for the user.
func (ts *TokenService) IssueAccessToken(userID string) (TokenValue, error) {
	return ts.GenerateToken(ACCESS_TOKEN_NAME, userID)
}

// IssueTempToken mints a pending token proving the password step passed
// while a second factor is still outstanding.
func (ts *TokenService) IssueTempToken(userID string) (TokenValue, error) {
	return ts.GenerateToken(TEMP_TOKEN_NAME, userID)
}

// ParseToken parses and validates any token minted by this service.
// Callers inspect Claims.Requires2FA to tell the two shapes apart.
func (ts *TokenService) ParseToken(tokenStr string) (*Claims, error) {
	return ts.generator.ParseToken(tokenStr)
}
