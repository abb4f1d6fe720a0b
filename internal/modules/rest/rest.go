package rest

import (
	"context"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	jwtware "github.com/gofiber/contrib/v3/jwt"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	logging "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

var logger = logrus.WithField("module", "rest")

// NewApp builds the fiber app with the shared middleware stack.
// Routes under /api are JWT protected when credentials are configured,
// everything else (login, signed object uploads) stays public.
func NewApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "vidpost",
		BodyLimit: max(cfg.MaxBodySizeMB, 1) * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logging.New(logging.Config{
		Format: "| ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		Stream: logger.Writer(),
	}))

	if AuthEnabled(cfg) {
		logger.Info("JWT authentication enabled for REST API")
		app.Post("/login",
			limiter.New(limiter.Config{Max: 10, Expiration: 1 * time.Minute}),
			loginHandler(cfg),
		)
		app.Use("/api", jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{Key: []byte(cfg.JwtSecret)},
			ErrorHandler: func(c fiber.Ctx, err error) error {
				return fiber.ErrUnauthorized
			},
		}))
	} else {
		logger.Warn("USERNAME or PASSWORD not set, REST API is not protected")
	}

	return app
}

func provider(ls fx.Lifecycle, cfg *config.Config) *fiber.App {
	app := NewApp(cfg)

	ls.Append(
		fx.StartStopHook(
			func(ctx context.Context) error {
				addr := ":" + cfg.Port
				logger.Infof("starting http server on %s", addr)
				go func() {
					if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
						logger.Errorf("http server error: %v", err)
					}
				}()
				return nil
			},
			func(ctx context.Context) error {
				logger.Info("stopping http server")
				return app.ShutdownWithContext(ctx)
			},
		),
	)

	return app
}

var Module = fx.Module("rest", fx.Provide(provider))
