package pool

import (
	"bytes"
	"sync"
)

// BytesPool hands out fixed size byte slices for io.CopyBuffer.
type BytesPool sync.Pool

func NewBytesPool(bufferSize int) *BytesPool {
	return &BytesPool{
		New: func() any {
			buf := make([]byte, bufferSize)
			return &buf
		},
	}
}

func (p *BytesPool) GetBytes() []byte {
	return *(*sync.Pool)(p).Get().(*[]byte)
}

func (p *BytesPool) PutBytes(buf []byte) {
	buf = buf[:cap(buf)]
	(*sync.Pool)(p).Put(&buf)
}

// BufferPool recycles bytes.Buffer values up to maxCap capacity.
type BufferPool struct {
	pool   sync.Pool
	maxCap int
}

func NewBufferPool(initialCap, maxCap int) *BufferPool {
	if initialCap < 0 {
		initialCap = 0
	}
	if maxCap < initialCap {
		maxCap = initialCap
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialCap))
			},
		},
		maxCap: maxCap,
	}
}

func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > bp.maxCap {
		// oversized buffers are left to the GC
		return
	}
	buf.Reset()
	bp.pool.Put(buf)
}
