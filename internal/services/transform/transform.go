package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/pemistahl/lingua-go"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "transform")

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrNotConfigured      = errors.New("completion api is not configured")
	ErrEmptyCompletion    = errors.New("completion returned no choices")
)

const systemPrompt = "Rewrite the transcript as a blog post in markdown. " +
	"Where possible split the content into topics and use headings and lists."

// Completer is the chat completion call of the OpenAI client.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type TranscriptReader interface {
	Read(key string) ([]byte, error)
}

type Service struct {
	completer Completer
	reader    TranscriptReader
	model     string
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Warmup builds the language detector and loads its models. The first call takes
// about a second, later calls return at once.
func Warmup() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		start := time.Now()
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English, lingua.Portuguese, lingua.Spanish, lingua.French,
				lingua.German, lingua.Italian, lingua.Chinese, lingua.Japanese,
			).
			WithPreloadedLanguageModels().
			Build()
		logger.Debugf("language detector ready in %v", time.Since(start).Round(time.Millisecond))
	})
	return detector
}

func New(completer Completer, reader TranscriptReader, model string) *Service {
	if model == "" {
		model = openai.GPT432K
	}
	return &Service{
		completer: completer,
		reader:    reader,
		model:     model,
	}
}

func NewService(lc fx.Lifecycle, cfg *config.Config, store *storage.Service) *Service {
	lc.Append(fx.StartHook(func() {
		go Warmup()
	}))
	if cfg.OpenAIApiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, text transform is disabled")
		return New(nil, store, cfg.OpenAIModel)
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIApiKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return New(openai.NewClientWithConfig(clientCfg), store, cfg.OpenAIModel)
}

// Transform turns the transcript stored for videoKey into a markdown post.
func (s *Service) Transform(ctx context.Context, videoKey string) (*openai.ChatCompletionMessage, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}
	text, err := s.reader.Read(videoKey + ".txt")
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrTranscriptNotFound
	} else if err != nil {
		return nil, err
	}
	transcript := strings.TrimSpace(string(text))
	if transcript == "" {
		return nil, ErrTranscriptNotFound
	}

	log := logger.WithField("video_key", videoKey)
	system := systemPrompt
	if language, ok := s.languageOf(transcript); ok {
		log.Debugf("transcript language detected as %s", language)
		system += fmt.Sprintf(" Always respond in %s.", language)
	}

	log.Infof("transforming transcript into post (%d chars)", len(transcript))
	res, err := s.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: transcript,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	log.Info("transform succeeded")
	return &res.Choices[0].Message, nil
}

func (s *Service) languageOf(text string) (string, bool) {
	language, ok := Warmup().DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return language.String(), true
}
