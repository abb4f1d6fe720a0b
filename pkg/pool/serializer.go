package pool

import (
	"encoding/gob"
)

// Serializer encodes values with gob using pooled buffers.
type Serializer struct {
	buffers *BufferPool
}

func NewSerializer() *Serializer {
	return &Serializer{
		buffers: NewBufferPool(1024, 64*1024),
	}
}

func (s *Serializer) Serialize(v any) ([]byte, error) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

func (s *Serializer) Deserialize(data []byte, v any) error {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	if _, err := buf.Write(data); err != nil {
		return err
	}
	return gob.NewDecoder(buf).Decode(v)
}
