package orchestrator

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/internal/services/engine"
	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/eric2788/vidpost/internal/services/upload"
	"github.com/eric2788/vidpost/internal/services/video"
	"github.com/eric2788/vidpost/pkg/pipeline"
	"github.com/eric2788/vidpost/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "orchestrator")

// Engine is the part of the transcoding adapter the batch loop needs.
type Engine interface {
	Load(ctx context.Context) error
	Convert(ctx context.Context, req engine.Request, onProgress engine.ProgressFunc) ([]byte, error)
}

type Uploader interface {
	RequestSignedDestination(ctx context.Context, itemID string) (string, error)
	Push(ctx context.Context, dest string, data []byte) error
}

type Options struct {
	Bitrate        string
	Codec          string
	Extension      string
	ConvertTimeout time.Duration
	UploadTimeout  time.Duration
	// ReconvertAll processes converted videos again instead of skipping them.
	ReconvertAll bool
	// ProgressBuffer bounds the progress side channel, events beyond it are dropped.
	ProgressBuffer int
}

// job is the value flowing through the per item pipe.
type job struct {
	item   video.Item
	output []byte
	dest   string
}

// Orchestrator drives the registry through one batch at a time, strictly one video after another.
type Orchestrator struct {
	registry *video.Registry
	engine   Engine
	uploader Uploader
	opts     Options
	pipe     *pipeline.Pipe[*job]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(registry *video.Registry, eng Engine, uploader Uploader, opts Options) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry: registry,
		engine:   eng,
		uploader: uploader,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	if o.opts.ProgressBuffer <= 0 {
		o.opts.ProgressBuffer = 32
	}
	o.opts.Extension = utils.EmptyOrElse(o.opts.Extension, "mp4")

	withLogger := pipeline.WithLogger[*job](logger)
	o.pipe = pipeline.New(
		pipeline.NewProcessorInfo[*job](PhaseLoad, pipeline.ProcessorFunc[*job](o.load), withLogger),
		pipeline.NewProcessorInfo[*job](PhaseConvert, pipeline.ProcessorFunc[*job](o.convert), withLogger, pipeline.WithTimeout[*job](opts.ConvertTimeout)),
		pipeline.NewProcessorInfo[*job](PhaseSign, pipeline.ProcessorFunc[*job](o.sign), withLogger, pipeline.WithTimeout[*job](opts.UploadTimeout)),
		pipeline.NewProcessorInfo[*job](PhasePush, pipeline.ProcessorFunc[*job](o.push), withLogger, pipeline.WithTimeout[*job](opts.UploadTimeout)),
	)
	return o
}

// NewService takes the object storage only to order the lifecycle: batch pushes land
// in it, so it must be stopped after the orchestrator has cancelled its batch.
func NewService(lc fx.Lifecycle, cfg *config.Config, registry *video.Registry, eng *engine.Adapter, uploader *upload.Client, _ *storage.Service) *Orchestrator {
	o := New(registry, eng, uploader, Options{
		Bitrate:        cfg.AudioBitrate,
		Codec:          cfg.AudioCodec,
		Extension:      cfg.AudioExtension,
		ConvertTimeout: cfg.ConvertTimeout,
		UploadTimeout:  cfg.UploadTimeout,
		ReconvertAll:   cfg.ReconvertAll,
	})
	lc.Append(fx.StopHook(o.Close))
	return o
}

// StartAudioConversion runs a whole batch and blocks until it ends.
// It fails with video.ErrAlreadyConverting when a batch is running.
func (o *Orchestrator) StartAudioConversion(ctx context.Context) error {
	ids, err := o.begin()
	if err != nil {
		return err
	}
	return o.run(ctx, ids)
}

// StartAsync checks and flips the batch state synchronously, then runs the batch
// in the background until it ends or the orchestrator is closed.
func (o *Orchestrator) StartAsync() error {
	ids, err := o.begin()
	if err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.run(o.ctx, ids); err != nil {
			logger.Warnf("batch failed: %v", err)
		}
	}()
	return nil
}

// Close cancels a background batch and waits for it to settle.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) begin() ([]string, error) {
	snapshot, err := o.registry.Dispatch(video.Action{Type: video.ActionStartConversion})
	if err != nil {
		return nil, err
	}
	ids := snapshot.IDs()
	logger.Infof("batch started with %d videos", len(ids))
	return ids, nil
}

func (o *Orchestrator) run(ctx context.Context, ids []string) error {
	start := time.Now()
	converted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return o.fail(&PipelineError{Phase: PhaseLoad, Err: err})
		}
		item, err := o.registry.Get(id)
		if video.IsItemNotFound(err) {
			logger.Debugf("video %s was removed, skipped", id)
			continue
		}
		if item.ConvertedAt != nil && !o.opts.ReconvertAll {
			logger.Debugf("video %s is already converted, skipped", id)
			continue
		}
		if len(item.Source) == 0 {
			return o.fail(&PipelineError{ItemID: id, Phase: PhaseLoad, Err: ErrNoSource})
		}
		if err := o.process(ctx, item); err != nil {
			var pErr *PipelineError
			if errors.As(err, &pErr) {
				return o.fail(pErr)
			}
			// removed between the lookup and mark loading
			logger.Debugf("video %s vanished before processing: %v", id, err)
			continue
		}
		converted++
	}

	if _, err := o.registry.Dispatch(video.Action{Type: video.ActionFinishConversion}); err != nil {
		return err
	}
	logger.Infof("batch finished, %d videos converted in %v", converted, time.Since(start).Round(time.Millisecond))
	return nil
}

// process returns a *PipelineError for pipeline failures, any other error means the item is gone.
func (o *Orchestrator) process(ctx context.Context, item video.Item) error {
	if _, err := o.registry.Dispatch(video.Action{Type: video.ActionMarkLoading, ID: item.ID}); err != nil {
		if video.IsItemNotFound(err) {
			return err
		}
		return &PipelineError{ItemID: item.ID, Phase: PhaseLoad, Err: err}
	}

	result, err := o.pipe.Process(ctx, &job{item: item})
	if err != nil {
		phase := PhaseLoad
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			phase = stageErr.Stage
			err = stageErr.Err
		}
		return &PipelineError{ItemID: item.ID, Phase: phase, Err: err}
	}

	if _, err := o.registry.Dispatch(video.Action{
		Type:       video.ActionMarkConverted,
		ID:         item.ID,
		KeepSource: o.opts.ReconvertAll,
	}); err != nil {
		return &PipelineError{ItemID: item.ID, Phase: PhaseCommit, Err: err}
	}
	logger.WithField("item_id", item.ID).Infof("video converted and pushed (%d bytes)", len(result.output))
	return nil
}

func (o *Orchestrator) fail(pErr *PipelineError) error {
	logger.WithField("item_id", pErr.ItemID).
		WithField("phase", pErr.Phase).
		Errorf("batch aborted: %v", pErr.Err)
	if _, err := o.registry.Dispatch(video.Action{
		Type: video.ActionError,
		ID:   pErr.ItemID,
		Err:  pErr.Error(),
	}); err != nil {
		logger.Errorf("error recording batch failure: %v", err)
	}
	return pErr
}

func (o *Orchestrator) load(ctx context.Context, log *logrus.Entry, j *job) (*job, error) {
	return j, o.engine.Load(ctx)
}

func (o *Orchestrator) convert(ctx context.Context, log *logrus.Entry, j *job) (*job, error) {
	id := j.item.ID
	input := "input" + filepath.Ext(utils.SanitizeFilename(j.item.Name))
	output := utils.ChangePathFormat(id, o.opts.Extension)

	progress := make(chan int, o.opts.ProgressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range progress {
			if _, err := o.registry.Dispatch(video.Action{Type: video.ActionUpdateProgress, ID: id, Progress: p}); err != nil {
				log.Debugf("progress update for %s dropped: %v", id, err)
			}
		}
	}()

	out, err := o.engine.Convert(ctx, engine.Request{
		ItemID:     id,
		Input:      j.item.Source,
		InputName:  input,
		OutputName: output,
		Args:       engine.AudioExtractionArgs(input, output, o.opts.Bitrate, o.opts.Codec),
	}, func(fraction float64) {
		select {
		case progress <- int(math.Round(fraction * 100)):
		default:
		}
	})
	// no progress write may land after the item is committed
	close(progress)
	<-drained

	if err != nil {
		return j, err
	}
	j.output = out
	return j, nil
}

func (o *Orchestrator) sign(ctx context.Context, log *logrus.Entry, j *job) (*job, error) {
	dest, err := o.uploader.RequestSignedDestination(ctx, j.item.ID)
	if err != nil {
		return j, err
	}
	j.dest = dest
	return j, nil
}

func (o *Orchestrator) push(ctx context.Context, log *logrus.Entry, j *job) (*job, error) {
	return j, o.uploader.Push(ctx, j.dest, j.output)
}
