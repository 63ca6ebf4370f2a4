package login

import "errors"

// Protocol outcomes. The HTTP layer maps these to status codes and
// response bodies; the service never sees transport concerns.
//
// ErrInvalidCredentials is reserved for the password step and is the
// same error whether the email is unknown or the password is wrong, so
// responses cannot be used to enumerate accounts. ErrInvalidCode is
// reserved for the TOTP step; the two are never conflated.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidCode           = errors.New("invalid 2FA code")
	ErrSetupNotInitiated     = errors.New("2FA setup not initiated")
	ErrTwoFactorNotEnabled   = errors.New("2FA not enabled")
	ErrTwoFactorNotRequired  = errors.New("2FA not required for this login")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
