package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// ApprovalTokenClaims scope an approval link to a single invoice. Tokens
// are embedded in review notifications so an approver can act on exactly
// one invoice without a full session.
type ApprovalTokenClaims struct {
	jwt.RegisteredClaims
	InvoiceID string `json:"invoice_id"`
	Scope     string `json:"scope"`
}

type ApprovalTokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewApprovalTokenManager(signingKey []byte, ttl time.Duration) *ApprovalTokenManager {
	return &ApprovalTokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *ApprovalTokenManager) GenerateApprovalToken(invoiceID uuid.UUID) (string, error) {
	claims := ApprovalTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   invoiceID.String(),
			Issuer:    "procure",
		},
		InvoiceID: invoiceID.String(),
		Scope:     "approve,reject",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *ApprovalTokenManager) ValidateApprovalToken(tokenString string) (*ApprovalTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ApprovalTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ApprovalTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *ApprovalTokenClaims) HasScope(required string) bool {
	scopes := strings.Split(c.Scope, ",")
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}
