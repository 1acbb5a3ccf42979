package s3_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/integration/storage/s3"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3aws.GetObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3aws.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3aws.HeadObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3aws.HeadObjectOutput)
	return out, args.Error(1)
}

type closeTracker struct {
	io.Reader
	closed atomic.Int32
}

func (c *closeTracker) Close() error {
	c.closed.Add(1)
	return nil
}

func objectOutput(content string) (*s3aws.GetObjectOutput, *closeTracker) {
	rc := &closeTracker{Reader: strings.NewReader(content)}
	return &s3aws.GetObjectOutput{
		Body:          rc,
		ContentType:   aws.String("text/plain"),
		ContentLength: aws.Int64(int64(len(content))),
		ETag:          aws.String(`"etag"`),
	}, rc
}

func keyIs(bucket, key string) any {
	return mock.MatchedBy(func(in *s3aws.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == bucket && aws.ToString(in.Key) == key
	})
}

func TestStream(t *testing.T) {
	t.Parallel()

	t.Run("lazy_download", func(t *testing.T) {
		t.Parallel()

		out, rc := objectOutput("object body")
		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, keyIs("bucket", "a.txt")).Return(out, nil).Once()

		stream := s3.NewStream(client, s3.Object{Bucket: "bucket", Key: "a.txt"})
		client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything)

		data, err := io.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, "object body", string(data))
		assert.Equal(t, "text/plain", stream.Info().ContentType)
		assert.Equal(t, int64(11), stream.Info().ContentLength)

		require.NoError(t, stream.Cancel())
		require.NoError(t, stream.Cancel())
		assert.Equal(t, int32(1), rc.closed.Load())
		client.AssertExpectations(t)
	})

	t.Run("cancel_before_read_skips_download", func(t *testing.T) {
		t.Parallel()

		client := &mockS3Client{}
		stream := s3.NewStream(client, s3.Object{Bucket: "bucket", Key: "a.txt"})

		require.NoError(t, stream.Cancel())
		_, err := stream.Read(make([]byte, 8))
		assert.ErrorIs(t, err, body.ErrSourceCancelled)
		client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything)
	})

	t.Run("range", func(t *testing.T) {
		t.Parallel()

		out, _ := objectOutput("part")
		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3aws.GetObjectInput) bool {
			return aws.ToString(in.Range) == "bytes=0-3"
		})).Return(out, nil)

		stream := s3.NewStream(client, s3.Object{Bucket: "b", Key: "k", Range: "bytes=0-3"})
		data, err := io.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, "part", string(data))
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

		_, err := s3.Open(context.Background(), client, s3.Object{Bucket: "b", Key: "missing"})
		assert.ErrorIs(t, err, s3.ErrObjectNotFound)

		var sc interface{ StatusCode() int }
		require.ErrorAs(t, err, &sc)
		assert.Equal(t, http.StatusNotFound, sc.StatusCode())
	})

	t.Run("opened_before_send", func(t *testing.T) {
		t.Parallel()

		out, _ := objectOutput("eager")
		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, mock.Anything).Return(out, nil).Once()

		stream, err := s3.Open(context.Background(), client, s3.Object{Bucket: "b", Key: "k"})
		require.NoError(t, err)
		assert.Equal(t, `"etag"`, stream.Info().ETag)

		data, err := io.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, "eager", string(data))
		client.AssertExpectations(t)
	})
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "no_such_key", err: &types.NoSuchKey{}, expected: s3.ErrObjectNotFound},
		{name: "no_such_bucket", err: &types.NoSuchBucket{}, expected: s3.ErrBucketNotFound},
		{name: "access_denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, expected: s3.ErrAccessDenied},
		{name: "slow_down", err: &smithy.GenericAPIError{Code: "SlowDown"}, expected: s3.ErrServiceUnavailable},
		{name: "archived", err: &smithy.GenericAPIError{Code: "InvalidObjectState"}, expected: s3.ErrInvalidObjectState},
		{name: "deadline", err: context.DeadlineExceeded, expected: s3.ErrOperationTimeout},
		{name: "canceled", err: context.Canceled, expected: s3.ErrOperationCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockS3Client{}
			client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, tt.err)

			_, err := s3.Stat(context.Background(), client, s3.Object{Bucket: "b", Key: "k"})
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	t.Run("unknown_code_keeps_cause", func(t *testing.T) {
		t.Parallel()

		cause := &smithy.GenericAPIError{Code: "Weird"}
		client := &mockS3Client{}
		client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, cause)

		_, err := s3.Stat(context.Background(), client, s3.Object{Bucket: "b", Key: "k"})
		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Weird", apiErr.ErrorCode())
	})
}

func TestAdapter(t *testing.T) {
	t.Parallel()

	t.Run("forwards_object", func(t *testing.T) {
		t.Parallel()

		out, rc := objectOutput("from s3")
		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, keyIs("default", "report.csv")).Return(out, nil).Once()

		reg := body.NewRegistry(body.WithAdapters(s3.Adapter(client, "default")))
		h := response.Body(s3.Object{Key: "report.csv"},
			response.WithContentType("text/csv"),
			response.WithBodyOptions(body.WithRegistry(reg)),
		)

		w := httptest.NewRecorder()
		response.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), h)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "from s3", w.Body.String())
		assert.Equal(t, int32(1), rc.closed.Load())
		client.AssertExpectations(t)
	})

	t.Run("replaced_object_is_never_fetched", func(t *testing.T) {
		t.Parallel()

		client := &mockS3Client{}
		reg := body.NewRegistry(body.WithAdapters(s3.Adapter(client, "b")))

		h := response.Forward(func(resp *body.Response) error {
			if err := resp.SetBody(&s3.Object{Key: "large.bin"}); err != nil {
				return err
			}
			return resp.SetBody("cached copy")
		}, response.WithBodyOptions(body.WithRegistry(reg)))

		w := httptest.NewRecorder()
		response.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), h)

		assert.Equal(t, "cached copy", w.Body.String())
		client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything)
	})

	t.Run("other_values_are_declined", func(t *testing.T) {
		t.Parallel()

		adapt := s3.Adapter(&mockS3Client{}, "b")
		_, ok := adapt("not an object")
		assert.False(t, ok)
		_, ok = adapt((*s3.Object)(nil))
		assert.False(t, ok)
	})

	t.Run("missing_object_after_headers_is_reported", func(t *testing.T) {
		t.Parallel()

		client := &mockS3Client{}
		client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

		var reported []error
		reg := body.NewRegistry(body.WithAdapters(s3.Adapter(client, "b")))
		h := response.Body(s3.Object{Key: "gone"}, response.WithBodyOptions(
			body.WithRegistry(reg),
			body.WithReporter(func(_ context.Context, err error) { reported = append(reported, err) }),
		))

		w := httptest.NewRecorder()
		response.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), h)

		require.Len(t, reported, 1)
		assert.True(t, errors.Is(reported[0], s3.ErrObjectNotFound))
	})
}
