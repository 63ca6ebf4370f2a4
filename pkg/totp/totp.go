package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultIssuer is embedded in enrollment URIs so authenticator apps
	// label the account.
	DefaultIssuer = "DevBook"

	// Period is the TOTP time step in seconds.
	Period = 30

	// Skew is the number of time steps accepted before and after the
	// current one (2 steps = +/-60 seconds).
	Skew = 2
)

// Key wraps a generated TOTP secret together with its enrollment artifacts.
type Key struct {
	key *otp.Key
}

// Generate creates a new random TOTP secret for the given account name.
// The account name ends up in the enrollment URI, typically the user's
// email wrapped in the issuer label.
func Generate(issuer, accountName string) (*Key, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "accountName", accountName, "issuer", issuer, "err", err)
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return &Key{key: key}, nil
}

// Secret returns the base32-encoded shared secret. This doubles as the
// manual entry key for authenticator apps that cannot scan a QR code.
func (k *Key) Secret() string {
	return k.key.Secret()
}

// URL returns the otpauth:// enrollment URI embedding issuer, account
// label and secret.
func (k *Key) URL() string {
	return k.key.URL()
}

// QRCodeDataURI renders the enrollment URI as a PNG QR code and returns
// it as a base64 data URI ready to drop into an <img> tag.
func (k *Key) QRCodeDataURI(size int) (string, error) {
	img, err := k.key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("failed to render enrollment QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode enrollment QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ValidCodeFormat reports whether the submitted code is exactly six
// numeric digits. Callers reject anything else before any TOTP
// computation happens.
func ValidCodeFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Validate checks a six-digit code against the secret within the default
// tolerance window.
func Validate(secret, code string) bool {
	return ValidateWithSkew(secret, code, Skew)
}

// ValidateWithSkew checks a six-digit code against the secret, accepting
// codes from up to skew time steps before or after the current one.
// Codes that are not exactly six numeric digits are rejected outright.
func ValidateWithSkew(secret, code string, skew uint) bool {
	if !ValidCodeFormat(code) {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "err", err)
		return false
	}
	return valid
}

// GenerateCode computes the current code for a secret. Used by tooling
// and tests; the server itself only ever validates.
func GenerateCode(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp passcode: %w", err)
	}
	return code, nil
}
