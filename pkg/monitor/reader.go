package monitor

import "io"

// ProgressReader reports the running byte count of r to callback.
type ProgressReader struct {
	r        io.Reader
	read     int64
	total    int64
	step     int64
	last     int64
	callback func(read, total int64)
}

// NewProgressReader calls cb every time at least step more bytes have been read
// and once more when r is exhausted.
func NewProgressReader(r io.Reader, total, step int64, cb func(read, total int64)) *ProgressReader {
	return &ProgressReader{
		r:        r,
		total:    total,
		step:     step,
		callback: cb,
	}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
	}
	if p.callback != nil && (p.read-p.last >= p.step || (err == io.EOF && p.read != p.last)) {
		p.last = p.read
		p.callback(p.read, p.total)
	}
	return n, err
}

func (p *ProgressReader) Read64() int64 {
	return p.read
}
