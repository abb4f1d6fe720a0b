package config

import (
	"fmt"
	"os"
	"time"

	"github.com/eric2788/vidpost/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

// all config will be loaded from environment variables, a .env file is honoured when present
type Config struct {
	Debug     bool
	Port      string
	PublicURL string

	DatabaseDir string
	ObjectsDir  string
	WorkDir     string

	FFmpegPath     string
	FFprobePath    string
	AudioBitrate   string
	AudioCodec     string
	AudioExtension string
	ReconvertAll   bool

	ConvertTimeout  time.Duration
	UploadTimeout   time.Duration
	SignedURLTTL    time.Duration
	UploadRateLimit int
	MinFreeDiskMB   uint64
	MaxBodySizeMB   int

	EventBufferSize int

	OpenAIApiKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	Username     string
	PasswordHash string
	JwtSecret    string
}

func provider() (*Config, error) {

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	password := os.Getenv("PASSWORD")
	username := os.Getenv("USERNAME")

	var passwordHash []byte
	if password != "" && username != "" {
		var err error
		if passwordHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err != nil {
			return nil, err
		}
	}

	port := utils.EmptyOrElse(os.Getenv("PORT"), "8080")
	debug := os.Getenv("DEBUG") == "true"
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	return &Config{
		Debug:     debug,
		Port:      port,
		PublicURL: utils.EmptyOrElse(os.Getenv("PUBLIC_URL"), "http://127.0.0.1:"+port),

		DatabaseDir: utils.EmptyOrElse(os.Getenv("DATABASE_DIR"), "database"),
		ObjectsDir:  utils.EmptyOrElse(os.Getenv("OBJECTS_DIR"), "objects"),
		WorkDir:     utils.EmptyOrElse(os.Getenv("WORK_DIR"), os.TempDir()),

		FFmpegPath:     utils.EmptyOrElse(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
		FFprobePath:    utils.EmptyOrElse(os.Getenv("FFPROBE_PATH"), "ffprobe"),
		AudioBitrate:   utils.EmptyOrElse(os.Getenv("AUDIO_BITRATE"), "20k"),
		AudioCodec:     utils.EmptyOrElse(os.Getenv("AUDIO_CODEC"), "libmp3lame"),
		AudioExtension: utils.EmptyOrElse(os.Getenv("AUDIO_EXTENSION"), "mp4"),
		ReconvertAll:   os.Getenv("RECONVERT_ALL") == "true",

		ConvertTimeout:  time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("CONVERT_TIMEOUT_MINUTES"), "30"))) * time.Minute,
		UploadTimeout:   time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("UPLOAD_TIMEOUT_MINUTES"), "10"))) * time.Minute,
		SignedURLTTL:    time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("SIGNED_URL_TTL_SECONDS"), "60"))) * time.Second,
		UploadRateLimit: utils.MustAtoi(utils.EmptyOrElse(os.Getenv("UPLOAD_RATE_LIMIT"), "0")),
		MinFreeDiskMB:   uint64(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("MIN_FREE_DISK_MB"), "256"))),
		MaxBodySizeMB:   utils.MustAtoi(utils.EmptyOrElse(os.Getenv("MAX_BODY_SIZE_MB"), "1024")),

		EventBufferSize: utils.MustAtoi(utils.EmptyOrElse(os.Getenv("EVENT_BUFFER_SIZE"), "500")),

		OpenAIApiKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   utils.EmptyOrElse(os.Getenv("OPENAI_MODEL"), "gpt-4-32k"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		Username:     username,
		PasswordHash: string(passwordHash),
		JwtSecret:    utils.EmptyOrElse(os.Getenv("JWT_SECRET"), "vidpost_secret"),
	}, nil
}

var Module = fx.Module("config", fx.Provide(provider))
