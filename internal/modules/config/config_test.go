package config_test

import (
	"testing"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("USERNAME", "")
	t.Setenv("PASSWORD", "")
	t.Setenv("SIGNED_URL_TTL_SECONDS", "")

	var cfg *config.Config
	app := fxtest.New(t, config.Module, fx.Populate(&cfg))
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.PublicURL)
	assert.Equal(t, 60*time.Second, cfg.SignedURLTTL)
	assert.Equal(t, "20k", cfg.AudioBitrate)
	assert.Equal(t, "libmp3lame", cfg.AudioCodec)
	assert.Equal(t, "mp4", cfg.AudioExtension)
	assert.False(t, cfg.ReconvertAll)
	assert.Empty(t, cfg.PasswordHash)
}

func TestCredentialsAreHashed(t *testing.T) {
	t.Setenv("USERNAME", "admin")
	t.Setenv("PASSWORD", "hunter2")
	t.Setenv("PORT", "9999")

	var cfg *config.Config
	app := fxtest.New(t, config.Module, fx.Populate(&cfg))
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, "admin", cfg.Username)
	assert.NotEqual(t, "hunter2", cfg.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte("hunter2")))
	assert.Equal(t, "http://127.0.0.1:9999", cfg.PublicURL)
}
