package pool

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// FileWriter streams readers into files through a temp file and an atomic rename.
type FileWriter struct {
	bp         *BytesPool
	bufferSize int
}

func NewFileWriter(pool *BytesPool, writerBufferSize int) *FileWriter {
	if writerBufferSize <= 0 {
		writerBufferSize = 256 * 1024
	}
	return &FileWriter{
		bp:         pool,
		bufferSize: writerBufferSize,
	}
}

// WriteToFile copies r into outPath and returns the number of bytes written.
// A partial temp file never replaces outPath, whether the copy fails or ctx is cancelled.
func (f *FileWriter) WriteToFile(ctx context.Context, r io.Reader, outPath string) (int64, error) {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, "upload-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	writer := bufio.NewWriterSize(tmp, f.bufferSize)

	buf := f.bp.GetBytes()
	defer f.bp.PutBytes(buf)

	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.CopyBuffer(writer, r, buf)
		if err == nil {
			if err = writer.Flush(); err == nil {
				err = tmp.Sync()
			}
		}
		done <- result{n, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		<-done
		cleanup()
		return 0, ctx.Err()
	case res = <-done:
		if res.err != nil {
			cleanup()
			return 0, res.err
		}
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}
	// windows refuses to rename over an existing file
	if runtime.GOOS == "windows" {
		_ = os.Remove(outPath)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		cleanup()
		return 0, err
	}
	return res.n, nil
}
