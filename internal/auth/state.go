package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("invalid or expired OAuth state")

const stateTTL = 10 * time.Minute

// StateClaims travel through the provider round trip as the OAuth state.
type StateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies signed OAuth state values.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Issue returns a signed state and its nonce. The nonce is also stored in a
// cookie so the callback can tie the state to the browser that started it.
func (s *StateSigner) Issue() (string, string, error) {
	now := s.now()
	claims := &StateClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return signed, claims.Nonce, nil
}

// Verify checks the signature, expiry and that the nonce matches.
func (s *StateSigner) Verify(state, nonce string) error {
	token, err := jwt.ParseWithClaims(
		state,
		&StateClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return ErrInvalidState
	}
	if nonce == "" || claims.Nonce != nonce {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}
