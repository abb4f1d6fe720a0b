package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/pkg/db"
	"github.com/eric2788/vidpost/pkg/ds"
	"github.com/eric2788/vidpost/pkg/pool"
	"github.com/eric2788/vidpost/pkg/signedurl"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"
)

const objectsBucket = "objects"

var logger = logrus.WithField("service", "storage")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

type ObjectInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

type Options struct {
	Dir       string
	DBPath    string
	Secret    []byte
	TTL       time.Duration
	MinFreeMB uint64
	// MaxWriters bounds concurrent object writes.
	MaxWriters int64
}

// Service keeps objects as files in one flat directory, indexed in bbolt.
// Writes from outside are authorised by single-use signed tokens.
type Service struct {
	opts   Options
	signer *signedurl.Client
	writer *pool.FileWriter

	client *db.Client
	index  *db.Bucket[ObjectInfo]

	tokens  *ttlcache.Cache[string, string]
	writing *ds.SyncedSet[string]
	writers *semaphore.Weighted

	freeSpace func(path string) (uint64, error)
	started   bool
}

func New(opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = signedurl.DefaultExpireAfter
	}
	if opts.MaxWriters <= 0 {
		opts.MaxWriters = 4
	}
	return &Service{
		opts:   opts,
		signer: signedurl.NewClient(opts.Secret),
		writer: pool.NewFileWriter(pool.NewBytesPool(256*1024), 1024*1024),
		tokens: ttlcache.New(
			ttlcache.WithTTL[string, string](opts.TTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		writing:   ds.NewSyncedSet[string](),
		writers:   semaphore.NewWeighted(opts.MaxWriters),
		freeSpace: freeSpace,
	}
}

func NewService(lc fx.Lifecycle, cfg *config.Config) *Service {
	s := New(Options{
		Dir:       cfg.ObjectsDir,
		DBPath:    filepath.Join(cfg.DatabaseDir, "objects.db"),
		Secret:    []byte(cfg.JwtSecret),
		TTL:       cfg.SignedURLTTL,
		MinFreeMB: cfg.MinFreeDiskMB,
	})
	lc.Append(fx.StartStopHook(s.Open, s.Close))
	return s
}

// Open prepares the objects directory, the index and the token cache.
func (s *Service) Open() error {
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create objects dir: %w", err)
	}
	client, err := db.Open(s.opts.DBPath)
	if err != nil {
		return err
	}
	index, err := db.NewBucket[ObjectInfo](client, objectsBucket)
	if err != nil {
		_ = client.Close()
		return err
	}
	count, err := index.Count()
	if err != nil {
		_ = client.Close()
		return err
	}
	s.client, s.index = client, index
	go s.tokens.Start()
	s.started = true
	logger.Infof("object storage ready at %s with %d objects", s.opts.Dir, count)
	return nil
}

func (s *Service) Close() error {
	if !s.started {
		return nil
	}
	s.started = false
	s.tokens.Stop()
	s.tokens.DeleteAll()
	return s.client.Close()
}

// SignUpload returns a token allowing exactly one write of key before it expires.
func (s *Service) SignUpload(key string) (string, time.Time, error) {
	if err := ValidateKey(key); err != nil {
		return "", time.Time{}, err
	}
	token, claims, err := s.signer.GenerateUploadToken(key, s.opts.TTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign upload token: %w", err)
	}
	s.tokens.Set(claims.ID, key, ttlcache.DefaultTTL)
	return token, claims.ExpiresAt.Time, nil
}

// Redeem consumes token for key. A token is accepted once.
func (s *Service) Redeem(token, key string) error {
	claims, err := s.signer.ParseUploadToken(token)
	if err != nil {
		logger.Debugf("rejected upload token for %s: %v", key, err)
		return ErrInvalidToken
	}
	if claims.Key != key {
		return ErrInvalidToken
	}
	item, ok := s.tokens.GetAndDelete(claims.ID)
	if !ok || item.Value() != key {
		return ErrInvalidToken
	}
	return nil
}

// Write stores r under key, replacing any previous content. expectedSize may be -1 when unknown.
func (s *Service) Write(ctx context.Context, key string, r io.Reader, expectedSize int64, contentType string) (*ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := s.checkSpace(expectedSize); err != nil {
		return nil, err
	}
	if !s.writing.TryAdd(key) {
		return nil, ErrObjectBusy
	}
	defer s.writing.Remove(key)

	if err := s.writers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.writers.Release(1)

	n, err := s.writer.WriteToFile(ctx, r, s.path(key))
	if err != nil {
		return nil, fmt.Errorf("write object %s: %w", key, err)
	}

	info := &ObjectInfo{
		Key:         key,
		Size:        n,
		ContentType: contentType,
		StoredAt:    time.Now().UTC(),
	}
	if err := s.index.Put(key, info); err != nil {
		return nil, fmt.Errorf("index object %s: %w", key, err)
	}
	logger.Infof("stored object %s (%d bytes)", key, n)
	return info, nil
}

func (s *Service) Stat(key string) (*ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	info, err := s.index.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrObjectNotFound
	}
	return info, err
}

// Path returns the file backing key after checking it is indexed.
func (s *Service) Path(key string) (string, *ObjectInfo, error) {
	info, err := s.Stat(key)
	if err != nil {
		return "", nil, err
	}
	p := s.path(key)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return "", nil, ErrObjectNotFound
	} else if err != nil {
		return "", nil, err
	}
	return p, info, nil
}

func (s *Service) Read(key string) ([]byte, error) {
	p, _, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (s *Service) List() ([]*ObjectInfo, error) {
	return s.index.List()
}

func (s *Service) Delete(key string) error {
	if _, err := s.Stat(key); err != nil {
		return err
	}
	if s.writing.Contains(key) {
		return ErrObjectBusy
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.index.Delete(key)
}

func (s *Service) path(key string) string {
	return filepath.Join(s.opts.Dir, key)
}

func (s *Service) checkSpace(expectedSize int64) error {
	if s.opts.MinFreeMB == 0 {
		return nil
	}
	free, err := s.freeSpace(s.opts.Dir)
	if err != nil {
		logger.Warnf("cannot read free disk space of %s: %v", s.opts.Dir, err)
		return nil
	}
	need := s.opts.MinFreeMB * 1024 * 1024
	if expectedSize > 0 {
		need += uint64(expectedSize)
	}
	if free < need {
		logger.Warnf("refusing write, %d MB free on %s", free/1024/1024, s.opts.Dir)
		return ErrInsufficientSpace
	}
	return nil
}

func freeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// ValidateKey accepts flat object names such as "<id>.mp4".
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
