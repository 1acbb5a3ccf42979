package s3

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrymomot/relay/core/body"
)

// Object names an S3 object. Range is an optional HTTP range such as
// "bytes=0-1023".
type Object struct {
	Bucket string
	Key    string
	Range  string
}

// Info describes a downloaded or inspected object.
type Info struct {
	ContentType   string
	ContentLength int64
	ETag          string
}

// Stream downloads one object as a response body. The GetObject call is made
// on the first read unless the stream was created with Open. Cancel aborts a
// request in flight and closes the download.
type Stream struct {
	client S3Client
	obj    Object

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	body   io.ReadCloser
	info   Info
	closed bool
}

// NewStream creates a lazy stream for obj.
func NewStream(client S3Client, obj Object) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{client: client, obj: obj, ctx: ctx, cancel: cancel}
}

// Open starts the download right away so a missing object can be answered
// with 404 before any response bytes are sent.
func Open(ctx context.Context, client S3Client, obj Object) (*Stream, error) {
	s := NewStream(client, obj)
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if _, err := s.open(); err != nil {
		_ = s.Cancel()
		return nil, err
	}
	return s, nil
}

// Info returns the object metadata once the download has started.
func (s *Stream) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Stream) Read(p []byte) (int, error) {
	rc, err := s.open()
	if err != nil {
		return 0, err
	}
	return rc.Read(p)
}

func (s *Stream) open() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, body.ErrSourceCancelled
	}
	if s.body != nil {
		return s.body, nil
	}

	input := &s3aws.GetObjectInput{
		Bucket: aws.String(s.obj.Bucket),
		Key:    aws.String(s.obj.Key),
	}
	if s.obj.Range != "" {
		input.Range = aws.String(s.obj.Range)
	}

	out, err := s.client.GetObject(s.ctx, input)
	if err != nil {
		return nil, classifyS3Error(err, "get")
	}
	s.body = out.Body
	s.info = Info{
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		ETag:          aws.ToString(out.ETag),
	}
	return s.body, nil
}

// Cancel aborts the download. It is safe to call more than once.
func (s *Stream) Cancel() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

// Stat returns metadata without downloading the object.
func Stat(ctx context.Context, client S3Client, obj Object) (Info, error) {
	out, err := client.HeadObject(ctx, &s3aws.HeadObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return Info{}, classifyS3Error(err, "head")
	}
	return Info{
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		ETag:          aws.ToString(out.ETag),
	}, nil
}

// Adapter lets Object and *Object values be assigned as bodies. Objects
// without a bucket use defaultBucket.
func Adapter(client S3Client, defaultBucket string) body.Adapter {
	return func(v any) (body.Stream, bool) {
		var obj Object
		switch val := v.(type) {
		case Object:
			obj = val
		case *Object:
			if val == nil {
				return nil, false
			}
			obj = *val
		default:
			return nil, false
		}
		if obj.Bucket == "" {
			obj.Bucket = defaultBucket
		}
		return NewStream(client, obj), true
	}
}
