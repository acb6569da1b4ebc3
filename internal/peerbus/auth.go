package peerbus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT authentication for bus publishes. Every publish carries a short-lived
// bearer token signed with the mesh shared secret; responders reject requests
// whose token does not verify.

// BusClaims represents the bus token claims
type BusClaims struct {
	NodeID string `json:"node_id"`
	jwt.RegisteredClaims
}

// BusAuth handles bus token creation and validation
type BusAuth struct {
	secretKey []byte
	validity  time.Duration
}

// NewBusAuth creates a new bus authentication handler
func NewBusAuth(secretKey string, validity time.Duration) *BusAuth {
	if validity <= 0 {
		validity = 2 * time.Minute
	}
	return &BusAuth{
		secretKey: []byte(secretKey),
		validity:  validity,
	}
}

// GenerateToken creates a new bearer token identifying the publishing node
func (b *BusAuth) GenerateToken(nodeID string) (string, time.Time, error) {
	if nodeID == "" {
		return "", time.Time{}, errors.New("nodeID cannot be empty")
	}

	now := time.Now()
	expiresAt := now.Add(b.validity)

	claims := BusClaims{
		NodeID: nodeID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(b.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a bearer token and returns the claims
func (b *BusAuth) ValidateToken(tokenString string) (*BusClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token cannot be empty")
	}

	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &BusClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(*BusClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if claims.NodeID == "" {
		return nil, errors.New("token carries no node ID")
	}

	return claims, nil
}
