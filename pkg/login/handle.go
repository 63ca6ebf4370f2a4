package login

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/sksah1842/devbook/pkg/totp"
	"github.com/sksah1842/devbook/pkg/user"
)

// Request bodies.
type (
	LoginJSONRequestBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	CodeJSONRequestBody struct {
		Token string `json:"token"`
	}

	VerifyLoginJSONRequestBody struct {
		TempToken string `json:"tempToken"`
		Token     string `json:"token"`
	}
)

// Response bodies. Error shapes match the original API: validation and
// credential failures return an errors array, state failures a msg.
type (
	MsgResponse struct {
		Msg string `json:"msg"`
	}

	ErrorItem struct {
		Msg   string `json:"msg"`
		Param string `json:"param,omitempty"`
	}

	ErrorsResponse struct {
		Errors []ErrorItem `json:"errors"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	TwoFARequiredResponse struct {
		Requires2FA bool   `json:"requires2FA"`
		TempToken   string `json:"tempToken"`
		Message     string `json:"message"`
	}

	SetupResponse struct {
		Secret         string `json:"secret"`
		QRCode         string `json:"qrCode"`
		ManualEntryKey string `json:"manualEntryKey"`
	}
)

type Handle struct {
	loginService *LoginService
}

func NewHandle(loginService *LoginService) Handle {
	return Handle{loginService: loginService}
}

func respondMsg(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, MsgResponse{Msg: msg})
}

func respondErrors(w http.ResponseWriter, r *http.Request, code int, items ...ErrorItem) {
	render.Status(r, code)
	render.JSON(w, r, ErrorsResponse{Errors: items})
}

// GetUser returns the authenticated user's record minus secrets.
// (GET /auth)
func (h Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondMsg(w, r, http.StatusUnauthorized, "No Token, Authorization Denied")
		return
	}

	u, err := h.loginService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondMsg(w, r, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("Failed to load user", "userId", userID, "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
		return
	}

	render.JSON(w, r, u.Sanitized())
}

// Login authenticates credentials and returns either a full session
// token or a 2FA challenge with a temp token.
// (POST /auth)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	data := LoginJSONRequestBody{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "Unable to parse request body"})
		return
	}

	var fieldErrors []ErrorItem
	if !strings.Contains(data.Email, "@") {
		fieldErrors = append(fieldErrors, ErrorItem{Msg: "Please include a valid email", Param: "email"})
	}
	if data.Password == "" {
		fieldErrors = append(fieldErrors, ErrorItem{Msg: "Password is required", Param: "password"})
	}
	if len(fieldErrors) > 0 {
		respondErrors(w, r, http.StatusBadRequest, fieldErrors...)
		return
	}

	loginParams := LoginParams{}
	copier.Copy(&loginParams, data)
	result, err := h.loginService.Login(r.Context(), loginParams)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "Invalid Credentials"})
			return
		}
		slog.Error("Login failed", "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
		return
	}

	if result.Requires2FA {
		render.JSON(w, r, TwoFARequiredResponse{
			Requires2FA: true,
			TempToken:   result.TempToken,
			Message:     "Please enter your 2FA code",
		})
		return
	}

	render.JSON(w, r, TokenResponse{Token: result.Token})
}

// Setup2FA generates a provisional secret and its enrollment artifacts.
// (POST /auth/2fa/setup)
func (h Handle) Setup2FA(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondMsg(w, r, http.StatusUnauthorized, "No Token, Authorization Denied")
		return
	}

	artifacts, err := h.loginService.SetupStart(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondMsg(w, r, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("Failed to set up 2FA", "userId", userID, "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
		return
	}

	render.JSON(w, r, SetupResponse{
		Secret:         artifacts.Secret,
		QRCode:         artifacts.QRCode,
		ManualEntryKey: artifacts.Secret,
	})
}

// VerifySetup2FA checks the submitted code against the provisional
// secret and enables 2FA.
// (POST /auth/2fa/verify-setup)
func (h Handle) VerifySetup2FA(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondMsg(w, r, http.StatusUnauthorized, "No Token, Authorization Denied")
		return
	}

	data := CodeJSONRequestBody{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "Unable to parse request body"})
		return
	}
	if !totp.ValidCodeFormat(data.Token) {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "2FA token is required", Param: "token"})
		return
	}

	err := h.loginService.SetupVerify(r.Context(), userID, data.Token)
	switch {
	case err == nil:
		render.JSON(w, r, MsgResponse{Msg: "2FA enabled successfully"})
	case errors.Is(err, ErrSetupNotInitiated):
		respondMsg(w, r, http.StatusBadRequest, "2FA setup not initiated")
	case errors.Is(err, ErrInvalidCode):
		respondMsg(w, r, http.StatusBadRequest, "Invalid 2FA code")
	default:
		slog.Error("Failed to verify 2FA setup", "userId", userID, "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
	}
}

// VerifyLogin2FA completes an interrupted login with a temp token and a
// TOTP code.
// (POST /auth/2fa/verify-login)
func (h Handle) VerifyLogin2FA(w http.ResponseWriter, r *http.Request) {
	data := VerifyLoginJSONRequestBody{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "Unable to parse request body"})
		return
	}

	var fieldErrors []ErrorItem
	if data.TempToken == "" {
		fieldErrors = append(fieldErrors, ErrorItem{Msg: "Temporary token is required", Param: "tempToken"})
	}
	if !totp.ValidCodeFormat(data.Token) {
		fieldErrors = append(fieldErrors, ErrorItem{Msg: "2FA token is required", Param: "token"})
	}
	if len(fieldErrors) > 0 {
		respondErrors(w, r, http.StatusBadRequest, fieldErrors...)
		return
	}

	token, err := h.loginService.LoginVerify(r.Context(), data.TempToken, data.Token)
	switch {
	case err == nil:
		render.JSON(w, r, TokenResponse{Token: token})
	case errors.Is(err, ErrInvalidOrExpiredToken):
		respondMsg(w, r, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, ErrTwoFactorNotRequired):
		respondMsg(w, r, http.StatusBadRequest, "2FA not required for this login")
	case errors.Is(err, ErrTwoFactorNotEnabled):
		respondMsg(w, r, http.StatusBadRequest, "2FA not enabled for this user")
	case errors.Is(err, ErrInvalidCode):
		respondMsg(w, r, http.StatusBadRequest, "Invalid 2FA code")
	default:
		slog.Error("Failed to verify 2FA login", "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
	}
}

// Disable2FA turns 2FA off after verifying a final code.
// (POST /auth/2fa/disable)
func (h Handle) Disable2FA(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondMsg(w, r, http.StatusUnauthorized, "No Token, Authorization Denied")
		return
	}

	data := CodeJSONRequestBody{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "Unable to parse request body"})
		return
	}
	if !totp.ValidCodeFormat(data.Token) {
		respondErrors(w, r, http.StatusBadRequest, ErrorItem{Msg: "2FA token is required to disable", Param: "token"})
		return
	}

	err := h.loginService.Disable(r.Context(), userID, data.Token)
	switch {
	case err == nil:
		render.JSON(w, r, MsgResponse{Msg: "2FA disabled successfully"})
	case errors.Is(err, ErrTwoFactorNotEnabled):
		respondMsg(w, r, http.StatusBadRequest, "2FA is not enabled")
	case errors.Is(err, ErrInvalidCode):
		respondMsg(w, r, http.StatusBadRequest, "Invalid 2FA code")
	default:
		slog.Error("Failed to disable 2FA", "userId", userID, "err", err)
		respondMsg(w, r, http.StatusInternalServerError, "Server Error")
	}
}
