package response

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/handler"
)

// File streams a file from disk. The file is opened per request and closed
// once it has been sent, replaced or the client has gone away. Missing files
// and directories render 404.
func File(path string, opts ...Option) handler.Response {
	cleanPath := filepath.Clean(path)

	return func(w http.ResponseWriter, r *http.Request) error {
		f, info, err := openFile(cleanPath)
		if err != nil {
			return err
		}

		base := []Option{
			WithContentType(contentTypeFor(cleanPath)),
			WithHeader("Content-Length", strconv.FormatInt(info.Size(), 10)),
			WithHeader("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat)),
		}
		return Body(f, append(base, opts...)...)(w, r)
	}
}

// Download is File with a Content-Disposition that makes browsers save the
// file. An empty filename uses the base name of path.
func Download(path, filename string, opts ...Option) handler.Response {
	if filename == "" {
		filename = filepath.Base(filepath.Clean(path))
	}
	return File(path, append([]Option{disposition(filename)}, opts...)...)
}

// Attachment sends in-memory data as a download. An empty content type is
// derived from the filename.
func Attachment(data []byte, filename, contentType string, opts ...Option) handler.Response {
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}
	base := []Option{
		disposition(filename),
		WithHeader("Content-Length", strconv.Itoa(len(data))),
	}
	return Bytes(data, contentType, append(base, opts...)...)
}

// FileReader streams reader as a download without buffering it.
func FileReader(reader io.Reader, filename, contentType string, opts ...Option) handler.Response {
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}
	base := []Option{
		disposition(filename),
		WithContentType(contentType),
	}
	return Body(reader, append(base, opts...)...)
}

// CSV streams records as a CSV download. The ".csv" extension is added to
// filename when missing.
func CSV(records [][]string, filename string, opts ...Option) handler.Response {
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}
	base := []Option{
		disposition(filename),
		WithContentType("text/csv; charset=utf-8"),
	}
	return Body(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
		cw := csv.NewWriter(w)
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}), append(base, opts...)...)
}

// CSVWithHeaders is CSV with a header row.
func CSVWithHeaders(headers []string, rows [][]string, filename string, opts ...Option) handler.Response {
	return CSV(append([][]string{headers}, rows...), filename, opts...)
}

func openFile(path string) (*os.File, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound.WithError(err)
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, ErrNotFound.WithError(fmt.Errorf("%s is a directory", path))
	}
	return f, info, nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// disposition sanitises filename to keep it from breaking out of the header.
func disposition(filename string) Option {
	name := strings.ReplaceAll(filename, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\"", "'")
	return WithHeader("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}
