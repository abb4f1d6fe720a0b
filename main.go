package main

import (
	"time"

	"github.com/eric2788/vidpost/internal/controllers/transform"
	"github.com/eric2788/vidpost/internal/controllers/upload"
	"github.com/eric2788/vidpost/internal/controllers/videos"
	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/internal/modules/rest"
	"github.com/eric2788/vidpost/internal/services/engine"
	"github.com/eric2788/vidpost/internal/services/orchestrator"
	"github.com/eric2788/vidpost/internal/services/storage"
	ts "github.com/eric2788/vidpost/internal/services/transform"
	us "github.com/eric2788/vidpost/internal/services/upload"
	"github.com/eric2788/vidpost/internal/services/video"
	"go.uber.org/fx"
)

func main() {

	app := fx.New(
		config.Module,
		rest.Module,

		fx.Provide(video.NewRegistry),
		fx.Provide(engine.NewService),
		fx.Provide(us.NewService),
		fx.Provide(storage.NewService),
		fx.Provide(ts.NewService),
		fx.Provide(orchestrator.NewService),

		fx.Invoke(videos.NewController),
		fx.Invoke(upload.NewController),
		fx.Invoke(transform.NewController),

		fx.StartTimeout(30*time.Second),
	)

	app.Run()
}
