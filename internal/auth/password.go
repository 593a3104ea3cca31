package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns a bcrypt hash suitable for auth.dev_password_hash.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckDevPassword accepts any password when no dev password hash is
// configured.
func (i *Issuer) CheckDevPassword(password string) error {
	if len(i.devHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(i.devHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
