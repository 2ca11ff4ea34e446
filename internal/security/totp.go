package security

import (
	"time"

	"github.com/pquerna/otp/totp"

	apperrors "mstock-trader/internal/errors"
)

// TOTPNow generates the current TOTP code from the stored secret.
func (s *Store) TOTPNow() (string, error) {
	creds, err := s.Credentials()
	if err != nil {
		return "", err
	}
	if creds.TOTPSecret == "" {
		return "", apperrors.Wrap(apperrors.ErrNotAuthenticated, "no TOTP secret stored")
	}
	code, err := totp.GenerateCode(creds.TOTPSecret, time.Now())
	if err != nil {
		return "", apperrors.Wrap(err, "generating TOTP code")
	}
	return code, nil
}

// ValidateTOTPSecret checks that a secret produces valid codes before it is
// stored.
func ValidateTOTPSecret(secret string) error {
	if _, err := totp.GenerateCode(secret, time.Now()); err != nil {
		return apperrors.Wrap(err, "invalid TOTP secret")
	}
	return nil
}
