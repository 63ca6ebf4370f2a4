package login

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sksah1842/devbook/pkg/tokengenerator"
	"github.com/sksah1842/devbook/pkg/user"
)

type testServer struct {
	handler      http.Handler
	svc          *LoginService
	repo         *user.InMemRepository
	tokenService *tokengenerator.TokenService
}

func newTestServer(t *testing.T, opts ...tokengenerator.TokenServiceOption) *testServer {
	t.Helper()
	svc, repo, tokenService := newTestService(t, opts...)
	ja := jwtauth.New("HS256", []byte(testSigningSecret), nil)
	return &testServer{
		handler:      Handler(NewHandle(svc), ja),
		svc:          svc,
		repo:         repo,
		tokenService: tokenService,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(AuthTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHandle_Login_Direct(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts.repo, "a@x.com", "secret1")

	rec := ts.do(t, http.MethodPost, "/", "", LoginJSONRequestBody{Email: "a@x.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[TokenResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.NotContains(t, rec.Body.String(), "requires2FA")
}

func TestHandle_Login_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts.repo, "a@x.com", "secret1")

	for _, body := range []LoginJSONRequestBody{
		{Email: "a@x.com", Password: "wrong"},
		{Email: "nobody@x.com", Password: "secret1"},
	} {
		rec := ts.do(t, http.MethodPost, "/", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorsResponse](t, rec)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "Invalid Credentials", resp.Errors[0].Msg)
	}
}

func TestHandle_Login_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/", "", LoginJSONRequestBody{Email: "not-an-email", Password: ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorsResponse](t, rec)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "email", resp.Errors[0].Param)
	assert.Equal(t, "password", resp.Errors[1].Param)
}

func TestHandle_GetUser(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	token, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/", token.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[user.SanitizedUser](t, rec)
	assert.Equal(t, u.ID.String(), resp.ID)
	assert.Equal(t, "a@x.com", resp.Email)
	// Secrets never leave the API.
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "twoFactorSecret")
}

func TestHandle_GetUser_NoToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandle_GetUser_TempTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	// A pending token must not open any protected route.
	temp, err := ts.tokenService.IssueTempToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/", temp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandle_FullTwoFactorScenario(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	token, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	// Enroll: setup returns secret + QR, verify-setup enables.
	rec := ts.do(t, http.MethodPost, "/2fa/setup", token.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	setup := decode[SetupResponse](t, rec)
	assert.NotEmpty(t, setup.Secret)
	assert.Equal(t, setup.Secret, setup.ManualEntryKey)
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")

	rec = ts.do(t, http.MethodPost, "/2fa/verify-setup", token.Token, CodeJSONRequestBody{Token: currentCode(setup.Secret)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2FA enabled successfully", decode[MsgResponse](t, rec).Msg)

	// Login is now interrupted by the 2FA challenge.
	rec = ts.do(t, http.MethodPost, "/", "", LoginJSONRequestBody{Email: "a@x.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	challenge := decode[TwoFARequiredResponse](t, rec)
	assert.True(t, challenge.Requires2FA)
	require.NotEmpty(t, challenge.TempToken)
	assert.Equal(t, "Please enter your 2FA code", challenge.Message)

	// Completing the challenge yields a full token.
	rec = ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{
		TempToken: challenge.TempToken,
		Token:     currentCode(setup.Secret),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	full := decode[TokenResponse](t, rec)
	require.NotEmpty(t, full.Token)

	// The new token opens protected routes.
	rec = ts.do(t, http.MethodGet, "/", full.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Disable with a valid code; next login is direct again.
	rec = ts.do(t, http.MethodPost, "/2fa/disable", full.Token, CodeJSONRequestBody{Token: currentCode(setup.Secret)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2FA disabled successfully", decode[MsgResponse](t, rec).Msg)

	rec = ts.do(t, http.MethodPost, "/", "", LoginJSONRequestBody{Email: "a@x.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[TokenResponse](t, rec).Token)
}

func TestHandle_VerifySetup_FiveDigitCode(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	token, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	_, err = ts.svc.SetupStart(context.Background(), u.ID)
	require.NoError(t, err)

	// Rejected at validation, before any TOTP computation.
	rec := ts.do(t, http.MethodPost, "/2fa/verify-setup", token.Token, CodeJSONRequestBody{Token: "12345"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorsResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "token", resp.Errors[0].Param)
	assert.NotContains(t, rec.Body.String(), "Invalid 2FA code")
}

func TestHandle_VerifySetup_NotInitiated(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	token, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-setup", token.Token, CodeJSONRequestBody{Token: "123456"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2FA setup not initiated", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_VerifyLogin_BadTempToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{
		TempToken: "garbage",
		Token:     "123456",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_VerifyLogin_ExpiredTempToken(t *testing.T) {
	ts := newTestServer(t, tokengenerator.WithTempTokenExpiry(-10*time.Minute))
	u := createUser(t, ts.repo, "a@x.com", "secret1")
	secret := enable2FA(t, ts.svc, u.ID)

	temp, err := ts.tokenService.IssueTempToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{
		TempToken: temp.Token,
		Token:     currentCode(secret),
	})
	// Expiry surfaces as 401, distinct from the 400 a wrong code gets.
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_VerifyLogin_NotEnabled(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	// Temp token for a user without 2FA (e.g. disabled after issuance).
	temp, err := ts.tokenService.IssueTempToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{
		TempToken: temp.Token,
		Token:     "123456",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2FA not enabled for this user", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_VerifyLogin_NotRequired(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")
	enable2FA(t, ts.svc, u.ID)

	// A full token is not a pending token.
	access, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{
		TempToken: access.Token,
		Token:     "123456",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2FA not required for this login", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_VerifyLogin_MissingFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/2fa/verify-login", "", VerifyLoginJSONRequestBody{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorsResponse](t, rec)
	assert.Len(t, resp.Errors, 2)
}

func TestHandle_Disable_NotEnabled(t *testing.T) {
	ts := newTestServer(t)
	u := createUser(t, ts.repo, "a@x.com", "secret1")

	token, err := ts.tokenService.IssueAccessToken(u.ID.String())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/2fa/disable", token.Token, CodeJSONRequestBody{Token: "123456"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2FA is not enabled", decode[MsgResponse](t, rec).Msg)
}

func TestHandle_Setup_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/2fa/setup", "/2fa/verify-setup", "/2fa/disable"} {
		rec := ts.do(t, http.MethodPost, path, "", CodeJSONRequestBody{Token: "123456"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}
