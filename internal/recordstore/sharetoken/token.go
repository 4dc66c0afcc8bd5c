// Package sharetoken mints and verifies the signed tokens embedded in share
// capability URLs. A capability URL is unguessable by construction: the
// token is an HS256-signed JWT carrying the share record ID plus a random
// token ID, and resolving a URL verifies the signature before the store is
// ever consulted.
package sharetoken

import (
	"fmt"
	"strings"
	"time"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the share record ID.
type Claims struct {
	jwt.RegisteredClaims
	ShareID string
}

// Generate returns a signed capability token for the given share ID.
// Capability tokens never expire; revocation happens by removing
// participants, not by aging out the URL.
func Generate(shareID string, secretKey []byte) (string, error) {
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       jti,
		},
		ShareID: shareID,
	})

	return token.SignedString(secretKey)
}

// Parse verifies the token signature and returns the embedded share ID.
func Parse(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidShareURL, err)
	}
	if !token.Valid || claims.ShareID == "" {
		return "", common.ErrInvalidShareURL
	}

	return claims.ShareID, nil
}

// MintURL builds the capability URL for a share.
func MintURL(baseURL, shareID string, secretKey []byte) (string, error) {
	token, err := Generate(shareID, secretKey)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(baseURL, "/") + "/share/" + token, nil
}

// ParseURL extracts and verifies the token from a capability URL, returning
// the share ID it names.
func ParseURL(rawURL string, secretKey []byte) (string, error) {
	idx := strings.LastIndex(rawURL, "/share/")
	if idx < 0 {
		return "", common.ErrInvalidShareURL
	}
	return Parse(rawURL[idx+len("/share/"):], secretKey)
}
