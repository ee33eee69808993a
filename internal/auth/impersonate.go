package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "tenantry"

// ErrInvalidToken is returned for impersonation tokens that are malformed,
// expired or signed with another key.
var ErrInvalidToken = errors.New("invalid impersonation token")

// ImpersonationClaims are carried by the token an admin holds while acting
// as another user. Subject is the impersonated user's id.
type ImpersonationClaims struct {
	AdminID int64 `json:"adm"`
	jwt.RegisteredClaims
}

// Impersonator issues and verifies impersonation tokens.
type Impersonator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewImpersonator(secret string, ttl time.Duration) *Impersonator {
	return &Impersonator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (i *Impersonator) Enabled() bool {
	return len(i.secret) > 0
}

// Issue signs a token letting adminID act as userID.
func (i *Impersonator) Issue(adminID, userID int64) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, errors.New("impersonation secret not configured")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := ImpersonationClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies a token and returns the admin and impersonated user ids.
func (i *Impersonator) Parse(token string) (adminID, userID int64, err error) {
	if !i.Enabled() {
		return 0, 0, ErrInvalidToken
	}
	var claims ImpersonationClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err = strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.AdminID == 0 {
		return 0, 0, ErrInvalidToken
	}
	return claims.AdminID, userID, nil
}
