package redis

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/relay/core/body"
)

// DefaultBlobChunkSize is the GETRANGE window of a Blob.
const DefaultBlobChunkSize = 32 * 1024

// Client is the part of the go-redis API that blobs use.
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	GetRange(ctx context.Context, key string, start, end int64) *redis.StringCmd
}

// Key names a Redis string value. Assigned as a body, it is streamed with
// GETRANGE instead of being loaded at once.
type Key string

// Blob reads a Redis string value in windows of chunkSize bytes. A key that
// is removed while it is being read ends the stream early.
type Blob struct {
	client Client
	key    string
	chunk  int64

	ctx    context.Context
	cancel context.CancelFunc

	offset  int64
	checked bool
	pending []byte
}

// NewBlob creates a blob reader. A non-positive chunkSize uses
// DefaultBlobChunkSize.
func NewBlob(client Client, key string, chunkSize int64) *Blob {
	if chunkSize <= 0 {
		chunkSize = DefaultBlobChunkSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Blob{client: client, key: key, chunk: chunkSize, ctx: ctx, cancel: cancel}
}

func (b *Blob) Read(p []byte) (int, error) {
	if b.ctx.Err() != nil {
		return 0, body.ErrSourceCancelled
	}
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	if !b.checked {
		n, err := b.client.Exists(b.ctx, b.key).Result()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("%w: %s", ErrBlobNotFound, b.key)
		}
		b.checked = true
	}

	s, err := b.client.GetRange(b.ctx, b.key, b.offset, b.offset+b.chunk-1).Result()
	if err != nil {
		if b.ctx.Err() != nil {
			return 0, body.ErrSourceCancelled
		}
		return 0, err
	}
	if s == "" {
		return 0, io.EOF
	}
	b.offset += int64(len(s))

	n := copy(p, s)
	if n < len(s) {
		b.pending = []byte(s[n:])
	}
	return n, nil
}

// Cancel stops the blob. A command in flight is interrupted.
func (b *Blob) Cancel() error {
	b.cancel()
	return nil
}

// Adapter lets Key values be assigned as bodies.
func Adapter(client Client, chunkSize int64) body.Adapter {
	return func(v any) (body.Stream, bool) {
		key, ok := v.(Key)
		if !ok {
			return nil, false
		}
		return NewBlob(client, string(key), chunkSize), true
	}
}
