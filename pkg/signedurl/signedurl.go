package signedurl

import (
	"time"

	"github.com/eric2788/vidpost/utils"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultExpireAfter = 60 * time.Second

type Client struct {
	secret []byte
}

// UploadClaims authorises one write of one object key.
type UploadClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

func NewClient(secret []byte) *Client {
	return &Client{secret: secret}
}

// GenerateUploadToken signs a token for key that expires after ttl.
// The returned claims carry the random token id used for single-use checks.
func (c *Client) GenerateUploadToken(key string, ttl time.Duration) (string, *UploadClaims, error) {
	if ttl <= 0 {
		ttl = DefaultExpireAfter
	}
	id, err := utils.RandomHexString(16)
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	claims := &UploadClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// ParseUploadToken verifies signature and expiry.
func (c *Client) ParseUploadToken(tokenString string) (*UploadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UploadClaims{}, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*UploadClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
