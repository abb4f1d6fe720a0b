package main_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

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
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/fx/fxtest"
)

func setupEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "0")
	t.Setenv("DATABASE_DIR", dir+"/database")
	t.Setenv("OBJECTS_DIR", dir+"/objects")
	t.Setenv("WORK_DIR", dir+"/work")
	t.Setenv("USERNAME", "")
	t.Setenv("PASSWORD", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func appOptions(extra ...fx.Option) fx.Option {
	return fx.Options(
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

		fx.Options(extra...),
	)
}

func TestAppLaunch(t *testing.T) {
	setupEnv(t)

	var app *fiber.App
	fxApp := fxtest.New(t, appOptions(fx.Populate(&app)))
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	t.Log("REST app started successfully")
}

// stopRecorder keeps the constructors whose stop hooks ran, in order.
type stopRecorder struct {
	mu      sync.Mutex
	callers []string
}

func (r *stopRecorder) LogEvent(event fxevent.Event) {
	if e, ok := event.(*fxevent.OnStopExecuting); ok {
		r.mu.Lock()
		r.callers = append(r.callers, e.CallerName)
		r.mu.Unlock()
	}
}

func (r *stopRecorder) indexOf(t *testing.T, pkg string) int {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, caller := range r.callers {
		if strings.Contains(caller, "/internal/services/"+pkg+".") {
			return i
		}
	}
	t.Fatalf("no stop hook of %s ran, got %v", pkg, r.callers)
	return -1
}

func TestAppStop_OrchestratorBeforeStorage(t *testing.T) {
	setupEnv(t)

	recorder := &stopRecorder{}
	fxApp := fxtest.New(t, appOptions(fx.WithLogger(func() fxevent.Logger { return recorder })))
	fxApp.RequireStart()
	fxApp.RequireStop()

	assert.Less(t, recorder.indexOf(t, "orchestrator"), recorder.indexOf(t, "storage"),
		"a running batch must be cancelled before the object index closes")
}
