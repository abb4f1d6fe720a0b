package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/sync/singleflight"
)

var logger = logrus.WithField("service", "engine")

var (
	ErrNotLoaded = errors.New("engine is not loaded")
	ErrNoOutput  = errors.New("engine produced no output")
)

// ProgressFunc receives conversion progress as a fraction in [0,1].
// It may be called from another goroutine and must not block.
type ProgressFunc func(progress float64)

// Runtime is the black box transcoder behind the adapter.
type Runtime interface {
	// Load prepares the runtime. The adapter calls it at most once successfully.
	Load(ctx context.Context) error
	// Exec runs one invocation with dir as working directory.
	Exec(ctx context.Context, dir string, args []string, onProgress ProgressFunc) error
}

// Request is one conversion. InputName and OutputName are file names inside
// the private work directory and are referenced by Args.
type Request struct {
	ItemID     string
	Input      []byte
	InputName  string
	OutputName string
	Args       []string
}

type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine load failed: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type ConversionError struct {
	ItemID string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion of video %s failed: %v", e.ItemID, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Adapter wraps a Runtime with a load-once, convert-with-progress contract.
// It is not meant to run conversions concurrently.
type Adapter struct {
	runtime Runtime
	workDir string
	loaded  atomic.Bool
	group   singleflight.Group
}

func NewAdapter(runtime Runtime, workDir string) *Adapter {
	return &Adapter{
		runtime: runtime,
		workDir: workDir,
	}
}

func NewService(lc fx.Lifecycle, cfg *config.Config) *Adapter {
	a := NewAdapter(NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath), cfg.WorkDir)
	lc.Append(fx.StartHook(func() {
		// warm up in the background, a batch loads again on demand if this fails
		go func() {
			if err := a.Load(context.Background()); err != nil {
				logger.Warnf("transcoding engine not ready: %v", err)
			}
		}()
	}))
	return a
}

// Load initialises the runtime once. Concurrent callers share one attempt,
// a failed attempt is retried by the next call.
func (a *Adapter) Load(ctx context.Context) error {
	if a.loaded.Load() {
		return nil
	}
	_, err, _ := a.group.Do("load", func() (any, error) {
		if a.loaded.Load() {
			return nil, nil
		}
		if err := a.runtime.Load(ctx); err != nil {
			return nil, &LoadError{Err: err}
		}
		a.loaded.Store(true)
		logger.Info("transcoding engine loaded")
		return nil, nil
	})
	return err
}

func (a *Adapter) IsLoaded() bool {
	return a.loaded.Load()
}

// Convert runs req and returns the content of the output file.
// The work directory created for the call is removed on every path.
func (a *Adapter) Convert(ctx context.Context, req Request, onProgress ProgressFunc) (out []byte, err error) {
	if !a.IsLoaded() {
		return nil, &ConversionError{ItemID: req.ItemID, Err: ErrNotLoaded}
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	log := logger.WithField("item_id", req.ItemID)

	if a.workDir != "" {
		if err := os.MkdirAll(a.workDir, 0755); err != nil {
			return nil, &ConversionError{ItemID: req.ItemID, Err: err}
		}
	}
	dir, err := os.MkdirTemp(a.workDir, "convert-"+utils.SanitizeFilename(req.ItemID)+"-*")
	if err != nil {
		return nil, &ConversionError{ItemID: req.ItemID, Err: err}
	}
	defer func() {
		if rmErr := utils.WithRetry(3, log, "remove work dir", func() error {
			return os.RemoveAll(dir)
		}); rmErr != nil {
			log.Errorf("work dir %s left behind: %v", dir, rmErr)
		}
	}()

	inputPath := filepath.Join(dir, filepath.Base(req.InputName))
	if err := os.WriteFile(inputPath, req.Input, 0600); err != nil {
		return nil, &ConversionError{ItemID: req.ItemID, Err: fmt.Errorf("write input: %w", err)}
	}

	log.Debugf("running engine with args %v", req.Args)
	if err := a.runtime.Exec(ctx, dir, req.Args, onProgress); err != nil {
		return nil, &ConversionError{ItemID: req.ItemID, Err: err}
	}

	outputPath := filepath.Join(dir, filepath.Base(req.OutputName))
	if !utils.IsFileExists(outputPath) {
		return nil, &ConversionError{ItemID: req.ItemID, Err: ErrNoOutput}
	}
	out, err = os.ReadFile(outputPath)
	if err != nil {
		return nil, &ConversionError{ItemID: req.ItemID, Err: fmt.Errorf("read output: %w", err)}
	}
	log.Debugf("engine produced %d bytes", len(out))
	return out, nil
}

// AudioExtractionArgs keeps only the audio streams of input and re-encodes them
// with codec at bitrate into output.
func AudioExtractionArgs(input, output, bitrate, codec string) []string {
	return []string{
		"-i", input,
		"-map", "0:a",
		"-b:a", bitrate,
		"-acodec", codec,
		output,
	}
}
