package body_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/body"
)

type blobRef string

func TestRegistry_Adapt(t *testing.T) {
	t.Parallel()

	producer := body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "produced")
		return err
	})

	tests := []struct {
		name  string
		value any
		kind  body.Kind
		inert bool
	}{
		{name: "bytes", value: []byte("raw"), kind: body.KindBytes, inert: true},
		{name: "text", value: "text", kind: body.KindText, inert: true},
		{name: "reader", value: strings.NewReader("reader"), kind: body.KindStream},
		{name: "read_closer", value: io.NopCloser(strings.NewReader("rc")), kind: body.KindStream},
		{name: "stream", value: newFakeStream("s"), kind: body.KindStream},
		{name: "producer", value: producer, kind: body.KindStream},
		{
			name: "producer_literal",
			value: func(ctx context.Context, w io.Writer) error {
				return nil
			},
			kind: body.KindStream,
		},
		{
			name:  "http_response",
			value: &http.Response{Body: io.NopCloser(strings.NewReader("upstream"))},
			kind:  body.KindStream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := body.NewRegistry().Adapt(tt.value)
			require.NoError(t, err)
			require.NotNil(t, src)
			assert.Equal(t, tt.kind, src.Kind())
			assert.Equal(t, tt.inert, src.Inert())
		})
	}
}

func TestRegistry_AdaptEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("nil_is_empty", func(t *testing.T) {
		t.Parallel()

		src, err := body.NewRegistry().Adapt(nil)
		assert.NoError(t, err)
		assert.Nil(t, src)
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		for _, v := range []any{42, 3.14, struct{}{}, map[string]string{}, body.ProducerFunc(nil)} {
			_, err := body.NewRegistry().Adapt(v)
			assert.ErrorIs(t, err, body.ErrUnsupportedType, "%T", v)
		}
	})

	t.Run("source_passes_through", func(t *testing.T) {
		t.Parallel()

		reg := body.NewRegistry()
		src, err := reg.Adapt("x")
		require.NoError(t, err)

		again, err := reg.Adapt(src)
		require.NoError(t, err)
		assert.Same(t, src, again)
	})

	t.Run("no_io_on_adapt", func(t *testing.T) {
		t.Parallel()

		stream := newFakeStream("a")
		_, err := body.NewRegistry().Adapt(stream)
		require.NoError(t, err)
		assert.Equal(t, int32(0), stream.reads.Load())
	})

	t.Run("registered_adapter", func(t *testing.T) {
		t.Parallel()

		reg := body.NewRegistry()
		reg.Register(func(v any) (body.Stream, bool) {
			ref, ok := v.(blobRef)
			if !ok {
				return nil, false
			}
			return newFakeStream("blob:" + string(ref)), true
		})

		sink := newMemSink()
		resp, err := body.New(sink, body.WithRegistry(reg))
		require.NoError(t, err)

		require.NoError(t, resp.SetBody(blobRef("avatar.png")))
		assert.Equal(t, body.KindStream, resp.Kind())
		require.NoError(t, resp.Send(context.Background()))
		assert.Equal(t, "blob:avatar.png", sink.String())
	})

	t.Run("registered_adapter_declines", func(t *testing.T) {
		t.Parallel()

		reg := body.NewRegistry(body.WithAdapters(func(any) (body.Stream, bool) {
			return nil, false
		}))
		_, err := reg.Adapt(blobRef("x"))
		assert.ErrorIs(t, err, body.ErrUnsupportedType)
	})
}

func TestProducer(t *testing.T) {
	t.Parallel()

	t.Run("streams_output", func(t *testing.T) {
		t.Parallel()

		sink := newMemSink()
		resp := newResponse(sink, newRecorder())

		require.NoError(t, resp.SetBody(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
			for _, part := range []string{"hello", " ", "world"} {
				if _, err := io.WriteString(w, part); err != nil {
					return err
				}
			}
			return nil
		})))

		require.NoError(t, resp.Send(context.Background()))
		assert.Equal(t, "hello world", sink.String())
	})

	t.Run("failure_is_reported_once", func(t *testing.T) {
		t.Parallel()

		errRender := errors.New("render failed")
		sink := newMemSink()
		rec := newRecorder()
		resp := newResponse(sink, rec)

		require.NoError(t, resp.SetBody(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
			if _, err := io.WriteString(w, "partial"); err != nil {
				return err
			}
			return errRender
		})))

		err := resp.Send(context.Background())
		assert.ErrorIs(t, err, errRender)
		assert.Equal(t, "partial", sink.String())
		require.Len(t, rec.Reported(), 1)
		assert.ErrorIs(t, rec.Reported()[0], errRender)
		assert.Empty(t, rec.Unhandled())
	})

	t.Run("replaced_producer_is_stopped", func(t *testing.T) {
		t.Parallel()

		sink := newMemSink()
		rec := newRecorder()
		resp := newResponse(sink, rec)

		stopped := make(chan struct{})
		require.NoError(t, resp.SetBody(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
			defer close(stopped)
			if _, err := io.WriteString(w, "p1"); err != nil {
				return err
			}
			<-ctx.Done()
			return ctx.Err()
		})))

		var once sync.Once
		sink.onWrite = func([]byte) {
			once.Do(func() {
				go func() { assert.NoError(t, resp.SetBody("b")) }()
			})
		}

		require.NoError(t, resp.Send(context.Background()))
		waitClosed(t, stopped)
		time.Sleep(20 * time.Millisecond)

		assert.Equal(t, "p1b", sink.String())
		assert.Empty(t, rec.Reported())
		assert.Empty(t, rec.Unhandled())
	})

	t.Run("never_started_when_replaced_before_send", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(newMemSink(), newRecorder())
		started := false

		require.NoError(t, resp.SetBody(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
			started = true
			return nil
		})))
		require.NoError(t, resp.SetBody("b"))
		require.NoError(t, resp.Send(context.Background()))
		assert.False(t, started)
	})
}
