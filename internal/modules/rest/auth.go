package rest

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "vidpost"

type loginRequest struct {
	User string `json:"user" form:"user"`
	Pass string `json:"pass" form:"pass"`
}

// AuthEnabled reports whether /api routes require a bearer token.
func AuthEnabled(cfg *config.Config) bool {
	return cfg.Username != "" && cfg.PasswordHash != ""
}

// IssueToken signs a session token for name. Login and in-process clients share it.
func IssueToken(cfg *config.Config, name string, ttl time.Duration) (string, error) {
	if cfg.JwtSecret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"iss":  issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JwtSecret))
}

func loginHandler(cfg *config.Config) fiber.Handler {
	return func(c fiber.Ctx) error {

		var req loginRequest
		if err := c.Bind().Body(&req); err != nil {
			return fiber.ErrBadRequest
		}

		if subtle.ConstantTimeCompare([]byte(req.User), []byte(cfg.Username)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(req.Pass)) != nil {
			return fiber.ErrUnauthorized
		}

		t, err := IssueToken(cfg, cfg.Username, 72*time.Hour)
		if err != nil {
			logger.Errorf("error signing login token: %v", err)
			return fiber.ErrInternalServerError
		}

		return c.JSON(fiber.Map{"token": t})
	}
}
