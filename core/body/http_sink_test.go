package body_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/body"
)

func TestHTTPSink(t *testing.T) {
	t.Parallel()

	t.Run("writes_and_flushes", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		sink := body.NewHTTPSink(w, req, body.WithWriteTimeout(time.Second))

		require.NoError(t, sink.Write(context.Background(), []byte("chunk")))
		assert.Equal(t, "chunk", w.Body.String())
		assert.True(t, w.Flushed)
		assert.False(t, sink.Closed())
	})

	t.Run("abort", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		sink := body.NewHTTPSink(w, req)

		fired := make(chan struct{})
		sink.OnAbort(func() { close(fired) })
		sink.Abort()

		waitClosed(t, fired)
		assert.True(t, sink.Closed())
		assert.ErrorIs(t, sink.Write(context.Background(), []byte("x")), body.ErrSinkAborted)
		assert.Empty(t, w.Body.String())
	})

	t.Run("request_cancellation_aborts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		sink := body.NewHTTPSink(httptest.NewRecorder(), req)

		fired := make(chan struct{})
		sink.OnAbort(func() { close(fired) })
		cancel()

		waitClosed(t, fired)
		assert.True(t, sink.Closed())
	})

	t.Run("stop_deregisters", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sink := body.NewHTTPSink(httptest.NewRecorder(), req)

		stop := sink.OnAbort(func() { t.Error("abort callback must not run") })
		assert.True(t, stop())
		sink.Abort()
		time.Sleep(10 * time.Millisecond)
	})
}

// brokenPipeWriter fails every body write the way a dropped connection does.
type brokenPipeWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenPipeWriter) Write([]byte) (int, error) {
	return 0, syscall.EPIPE
}

func TestHTTPSink_WriteFailure(t *testing.T) {
	t.Parallel()

	t.Run("failed_write_closes_sink", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sink := body.NewHTTPSink(brokenPipeWriter{httptest.NewRecorder()}, req)

		fired := make(chan struct{})
		sink.OnAbort(func() { close(fired) })

		assert.ErrorIs(t, sink.Write(context.Background(), []byte("x")), syscall.EPIPE)
		waitClosed(t, fired)
		assert.True(t, sink.Closed())
	})

	t.Run("disconnect_is_not_reported", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sink := body.NewHTTPSink(brokenPipeWriter{httptest.NewRecorder()}, req)
		rec := newRecorder()
		resp := newResponse(sink, rec)

		stream := newFakeStream("a1", "a2")
		require.NoError(t, resp.SetBody(stream))

		err := resp.Send(context.Background())
		assert.ErrorIs(t, err, body.ErrSinkAborted)
		assert.True(t, sink.Closed())
		assert.Empty(t, rec.Reported())
		assert.True(t, stream.Cancelled())
	})
}

func TestHTTPSink_Server(t *testing.T) {
	t.Parallel()

	t.Run("streams_to_client", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp, err := body.New(body.NewHTTPSink(w, r))
			require.NoError(t, err)
			defer resp.Close()

			stream := newFakeStream("one,", "two,", "three")
			stream.interval = 5 * time.Millisecond
			assert.NoError(t, resp.SetBody(stream))
			assert.NoError(t, resp.Send(r.Context()))
		}))
		defer server.Close()

		res, err := http.Get(server.URL)
		require.NoError(t, err)
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "one,two,three", string(data))
	})

	t.Run("client_disconnect_aborts", func(t *testing.T) {
		t.Parallel()

		rec := newRecorder()
		result := make(chan error, 1)
		stream := newFakeStream("first")
		stream.hold = true

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := newResponse(body.NewHTTPSink(w, r), rec)
			defer resp.Close()

			assert.NoError(t, resp.SetBody(stream))
			result <- resp.Send(r.Context())
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		buf := make([]byte, len("first"))
		_, err = io.ReadFull(res.Body, buf)
		require.NoError(t, err)
		assert.Equal(t, "first", string(buf))

		cancel()
		res.Body.Close()

		select {
		case err := <-result:
			assert.ErrorIs(t, err, body.ErrSinkAborted)
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not observe the disconnect")
		}
		assert.True(t, stream.Cancelled())
		assert.Empty(t, rec.Reported())
	})
}
