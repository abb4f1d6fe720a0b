package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	s := New(Options{
		Dir:    filepath.Join(dir, "objects"),
		DBPath: filepath.Join(dir, "db", "objects.db"),
		Secret: []byte("test-secret"),
		TTL:    time.Minute,
	})
	require.NoError(t, s.Open())
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func TestSignedUploadRoundTrip(t *testing.T) {
	s := newTestService(t)

	token, expires, err := s.SignUpload("abc.mp4")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	require.NoError(t, s.Redeem(token, "abc.mp4"))
	info, err := s.Write(t.Context(), "abc.mp4", strings.NewReader("audio"), 5, "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	data, err := s.Read("abc.mp4")
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	stat, err := s.Stat("abc.mp4")
	require.NoError(t, err)
	assert.Equal(t, "audio/mp4", stat.ContentType)
}

func TestRedeem_SingleUse(t *testing.T) {
	s := newTestService(t)
	token, _, err := s.SignUpload("abc.mp4")
	require.NoError(t, err)

	require.NoError(t, s.Redeem(token, "abc.mp4"))
	assert.ErrorIs(t, s.Redeem(token, "abc.mp4"), ErrInvalidToken)
}

func TestRedeem_Rejects(t *testing.T) {
	s := newTestService(t)
	token, _, err := s.SignUpload("abc.mp4")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Redeem(token, "other.mp4"), ErrInvalidToken, "token is bound to its key")
	assert.ErrorIs(t, s.Redeem("garbage", "abc.mp4"), ErrInvalidToken)

	other := New(Options{Secret: []byte("another-secret")})
	forged, _, err := other.SignUpload("abc.mp4")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Redeem(forged, "abc.mp4"), ErrInvalidToken)

	// the rejected attempts above did not consume the real token
	assert.NoError(t, s.Redeem(token, "abc.mp4"))
}

func TestRedeem_Expired(t *testing.T) {
	s := newTestService(t)
	s.opts.TTL = time.Second
	token, _, err := s.SignUpload("abc.mp4")
	require.NoError(t, err)
	time.Sleep(2100 * time.Millisecond)
	assert.ErrorIs(t, s.Redeem(token, "abc.mp4"), ErrInvalidToken)
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"abc.mp4", "0f3c9a2e-1b2c-4d5e-8f90-123456789abc.txt", "a"} {
		assert.NoError(t, ValidateKey(key), key)
	}
	for _, key := range []string{"", "../etc/passwd", "a/b", ".hidden", "a..b", strings.Repeat("x", 200), "with space"} {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, key)
	}
}

func TestMissingObject(t *testing.T) {
	s := newTestService(t)
	_, err := s.Read("nope.mp4")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, s.Delete("nope.mp4"), ErrObjectNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestService(t)
	_, err := s.Write(t.Context(), "a.txt", strings.NewReader("hello"), -1, "text/plain")
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete("a.txt"))
	_, err = s.Stat("a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = os.Stat(s.path("a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_InsufficientSpace(t *testing.T) {
	s := newTestService(t)
	s.opts.MinFreeMB = 10
	s.freeSpace = func(string) (uint64, error) { return 5 * 1024 * 1024, nil }

	_, err := s.Write(t.Context(), "a.mp4", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInsufficientSpace)

	s.freeSpace = func(string) (uint64, error) { return 0, errors.New("unsupported") }
	_, err = s.Write(t.Context(), "a.mp4", strings.NewReader("x"), 1, "")
	assert.NoError(t, err, "an unreadable disk usage does not block writes")
}

type blockingReader struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingReader) Read(p []byte) (int, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return 0, os.ErrClosed
}

func TestWrite_SameKeyIsExclusive(t *testing.T) {
	s := newTestService(t)
	br := &blockingReader{release: make(chan struct{}), started: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := s.Write(t.Context(), "a.mp4", br, -1, "")
		done <- err
	}()
	<-br.started

	_, err := s.Write(t.Context(), "a.mp4", bytes.NewReader([]byte("x")), 1, "")
	assert.ErrorIs(t, err, ErrObjectBusy)

	close(br.release)
	assert.Error(t, <-done)
	_, err = s.Stat("a.mp4")
	assert.ErrorIs(t, err, ErrObjectNotFound, "a failed write leaves nothing behind")
}
