package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sksah1842/devbook/pkg/login"
	"github.com/sksah1842/devbook/pkg/user"
)

// APIError is a non-2xx response from the auth API. The server uses two
// body shapes, a bare {"msg": ...} for state errors and
// {"errors": [{"msg": ..., "param": ...}]} for validation and
// credential errors; both collapse into Messages.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Client talks to the auth API and feeds the session store. A failed
// call never retries on its own and never clears a pending challenge,
// so the user can correct a mistyped code against the same pending
// token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *SessionStore
}

// New creates a Client against baseURL, e.g. "http://localhost:5000".
func New(baseURL string, store *SessionStore) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
	}
}

// Store returns the session store the client dispatches into.
func (c *Client) Store() *SessionStore {
	return c.store
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.store.State().Token; token != "" {
		req.Header.Set(login.AuthTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Msg    string `json:"msg"`
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Msg != "" {
			apiErr.Messages = append(apiErr.Messages, body.Msg)
		}
		for _, item := range body.Errors {
			apiErr.Messages = append(apiErr.Messages, item.Msg)
		}
	}
	return apiErr
}

// Login performs the password step. Depending on the account it either
// completes the session or leaves it in the pending-second-factor state
// for VerifyLogin. A 401 clears the session; a 400 (bad credentials)
// only reports the error.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := login.LoginJSONRequestBody{Email: email, Password: password}

	var result struct {
		Token       string `json:"token"`
		Requires2FA bool   `json:"requires2FA"`
		TempToken   string `json:"tempToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth", body, &result); err != nil {
		c.clearOnAuthError(err)
		return err
	}

	if result.Requires2FA {
		c.store.Dispatch(SecondFactorRequired{TempToken: result.TempToken})
		return nil
	}
	c.store.Dispatch(LoginSucceeded{Token: result.Token})
	return c.LoadUser(ctx)
}

// VerifyLogin completes a pending login with a TOTP code. On failure
// the challenge state stays put so the code can be retried.
func (c *Client) VerifyLogin(ctx context.Context, code string) error {
	tempToken := c.store.State().TempToken
	if tempToken == "" {
		return fmt.Errorf("no pending login to verify")
	}

	body := login.VerifyLoginJSONRequestBody{TempToken: tempToken, Token: code}
	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/verify-login", body, &result); err != nil {
		return err
	}

	c.store.Dispatch(LoginSucceeded{Token: result.Token})
	return c.LoadUser(ctx)
}

// LoadUser fetches the authenticated user. An auth failure clears the
// session, which is how an expired token is discovered.
func (c *Client) LoadUser(ctx context.Context) error {
	var u user.SanitizedUser
	if err := c.do(ctx, http.MethodGet, "/auth", nil, &u); err != nil {
		c.clearOnAuthError(err)
		return err
	}
	c.store.Dispatch(UserLoaded{User: u})
	return nil
}

// Setup2FA starts enrollment and opens the wizard state. Calling it
// again before verifying simply replaces the wizard artifacts, matching
// the server's replace-on-restart behavior.
func (c *Client) Setup2FA(ctx context.Context) error {
	var result login.SetupResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/setup", nil, &result); err != nil {
		c.clearOnAuthError(err)
		return err
	}
	c.store.Dispatch(SetupDataReceived{Setup: SetupData{
		Secret:         result.Secret,
		QRCode:         result.QRCode,
		ManualEntryKey: result.ManualEntryKey,
	}})
	return nil
}

// VerifySetup completes enrollment with a code from the authenticator.
// The wizard closes only on success.
func (c *Client) VerifySetup(ctx context.Context, code string) error {
	body := login.CodeJSONRequestBody{Token: code}
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/verify-setup", body, nil); err != nil {
		c.clearOnAuthError(err)
		return err
	}
	c.store.Dispatch(SetupCleared{})
	return c.LoadUser(ctx)
}

// CancelSetup abandons an in-progress enrollment locally. The
// provisional server-side secret is harmless and gets replaced on the
// next Setup2FA.
func (c *Client) CancelSetup() {
	c.store.Dispatch(SetupCleared{})
}

// Disable2FA turns off the second factor, proving possession with a
// current code.
func (c *Client) Disable2FA(ctx context.Context, code string) error {
	body := login.CodeJSONRequestBody{Token: code}
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/disable", body, nil); err != nil {
		c.clearOnAuthError(err)
		return err
	}
	c.store.Dispatch(SetupCleared{})
	return c.LoadUser(ctx)
}

// Logout clears the session. Tokens are not revocable server-side, so
// this is purely a client-state operation.
func (c *Client) Logout() {
	c.store.Dispatch(SessionCleared{})
}

func (c *Client) clearOnAuthError(err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.store.Dispatch(SessionCleared{})
	}
}
