package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sksah1842/devbook/pkg/tokengenerator"
	"github.com/sksah1842/devbook/pkg/totp"
	"github.com/sksah1842/devbook/pkg/user"
)

// LoginService decides, per login/setup/verify/disable request, which
// state transition applies and what token or error comes back. All
// shared state lives in the credential store; the service itself is
// stateless per request.
type LoginService struct {
	repo         user.Repository
	tokenService *tokengenerator.TokenService
	issuer       string
}

// NewLoginService creates a new LoginService. issuer labels enrollment
// URIs; empty means the package default.
func NewLoginService(repo user.Repository, tokenService *tokengenerator.TokenService, issuer string) *LoginService {
	if issuer == "" {
		issuer = totp.DefaultIssuer
	}
	return &LoginService{
		repo:         repo,
		tokenService: tokenService,
		issuer:       issuer,
	}
}

// LoginParams carries the credentials of a password login attempt.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult is either a full session token (2FA disabled) or a pending
// token with the Requires2FA signal (2FA enabled, second factor still
// outstanding). Never both.
type LoginResult struct {
	Token       string
	Requires2FA bool
	TempToken   string
}

// SetupArtifacts is what the client needs to enroll an authenticator
// app: the base32 secret (doubles as the manual entry key) and a QR code
// of the enrollment URI as a PNG data URI.
type SetupArtifacts struct {
	Secret string
	QRCode string
}

// HashPassword hashes the plain-text password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPasswordHash compares the plain-text password with the stored hashed password.
func CheckPasswordHash(password, hashedPassword string) bool {
	if password == "" || hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// Login verifies the password step. Unknown email and wrong password
// return the identical ErrInvalidCredentials. With 2FA disabled the
// result carries a full token; with 2FA enabled it carries a pending
// token only, and no access has been granted yet.
func (s *LoginService) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	u, err := s.repo.FindByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !CheckPasswordHash(params.Password, u.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		tempToken, err := s.tokenService.IssueTempToken(u.ID.String())
		if err != nil {
			slog.Error("Failed to issue temp token", "userId", u.ID, "err", err)
			return LoginResult{}, fmt.Errorf("failed to issue temp token: %w", err)
		}
		return LoginResult{Requires2FA: true, TempToken: tempToken.Token}, nil
	}

	accessToken, err := s.tokenService.IssueAccessToken(u.ID.String())
	if err != nil {
		slog.Error("Failed to issue access token", "userId", u.ID, "err", err)
		return LoginResult{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	return LoginResult{Token: accessToken.Token}, nil
}

// SetupStart generates a fresh TOTP secret and stores it as provisional:
// twoFactorEnabled stays false until the user proves possession via
// SetupVerify. A prior provisional secret is silently replaced; it was
// never enabled, so it is safe to discard. Only one setup is ever in
// flight per user.
func (s *LoginService) SetupStart(ctx context.Context, userID uuid.UUID) (SetupArtifacts, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return SetupArtifacts{}, err
	}

	key, err := totp.Generate(s.issuer, u.Email)
	if err != nil {
		return SetupArtifacts{}, err
	}

	qrCode, err := key.QRCodeDataURI(200)
	if err != nil {
		return SetupArtifacts{}, err
	}

	if err := s.repo.SetTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return SetupArtifacts{}, fmt.Errorf("failed to store provisional secret: %w", err)
	}

	slog.Info("Stored provisional 2FA secret", "userId", userID)
	return SetupArtifacts{Secret: key.Secret(), QRCode: qrCode}, nil
}

// SetupVerify checks the submitted code against the provisional secret
// and, on success, flips twoFactorEnabled on. This is the only
// transition that turns 2FA on. Re-verifying after 2FA is already
// enabled is a no-op, not an error.
func (s *LoginService) SetupVerify(ctx context.Context, userID uuid.UUID, code string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if u.TwoFactorSecret == "" {
		return ErrSetupNotInitiated
	}

	if !totp.Validate(u.TwoFactorSecret, code) {
		return ErrInvalidCode
	}

	if u.TwoFactorEnabled {
		return nil
	}

	if err := s.repo.EnableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("failed to enable 2FA: %w", err)
	}
	slog.Info("2FA enabled", "userId", userID)
	return nil
}

// LoginVerify completes an interrupted login: it checks the pending
// token, then the TOTP code, and issues a full session token. This is
// the only path from pending-second-factor to fully authenticated. A
// pending token that outlives a disable fails with
// ErrTwoFactorNotEnabled rather than granting access.
func (s *LoginService) LoginVerify(ctx context.Context, tempToken, code string) (string, error) {
	claims, err := s.tokenService.ParseToken(tempToken)
	if err != nil {
		// Keep the expiry/invalid distinction in the cause chain.
		return "", fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	if !claims.Requires2FA {
		return "", ErrTwoFactorNotRequired
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return "", fmt.Errorf("%w: malformed subject", ErrInvalidOrExpiredToken)
	}

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrTwoFactorNotEnabled
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !u.TwoFactorEnabled || u.TwoFactorSecret == "" {
		return "", ErrTwoFactorNotEnabled
	}

	if !totp.Validate(u.TwoFactorSecret, code) {
		return "", ErrInvalidCode
	}

	accessToken, err := s.tokenService.IssueAccessToken(u.ID.String())
	if err != nil {
		slog.Error("Failed to issue access token after 2FA", "userId", u.ID, "err", err)
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	return accessToken.Token, nil
}

// Disable turns 2FA off after a final proof of possession. The enabled
// flag and the secret are cleared in one store update.
func (s *LoginService) Disable(ctx context.Context, userID uuid.UUID, code string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrTwoFactorNotEnabled
		}
		return err
	}

	if !u.TwoFactorEnabled || u.TwoFactorSecret == "" {
		return ErrTwoFactorNotEnabled
	}

	if !totp.Validate(u.TwoFactorSecret, code) {
		return ErrInvalidCode
	}

	if err := s.repo.DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	slog.Info("2FA disabled", "userId", userID)
	return nil
}

// GetUser loads the credential record backing an authenticated session,
// for the caller to sanitize and return.
func (s *LoginService) GetUser(ctx context.Context, userID uuid.UUID) (user.User, error) {
	return s.repo.FindByID(ctx, userID)
}
