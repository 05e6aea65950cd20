// Package codec provides encoding functionality for the response bodies produced by middleware.
package codec

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
)

// Codec serializes structured body values.
type Codec interface {
	// ContentType is the media type written when the response has none yet.
	ContentType() string
	// Marshal converts the value to its wire format.
	Marshal(v any) ([]byte, error)
}

// ErrNilWriter is returned by WriteBody when no response writer is available.
var ErrNilWriter = errors.New("codec: nil response writer")

// EncodeError reports that a structured body could not be serialized.
// Nothing has been written to the response when it is returned.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return "codec: encode body: " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// WriteBody sends status and body on w and returns the number of payload bytes written.
//
// The body is encoded according to its dynamic type:
//   - nil: empty payload
//   - string: text/plain, or text/html when it starts with '<'
//   - []byte: application/octet-stream
//   - io.Reader: streamed as-is and closed afterwards if it is an io.Closer
//   - proto.Message: application/x-protobuf
//   - anything else: application/json
//
// A Content-Type already present on w is never overwritten. Statuses that do
// not allow a body (1xx, 204, 304) send headers only.
func WriteBody(w http.ResponseWriter, status int, body any) (int64, error) {
	if w == nil {
		return 0, ErrNilWriter
	}
	if closer, ok := body.(io.Closer); ok {
		defer closer.Close()
	}

	h := w.Header()
	if !bodyAllowed(status) {
		h.Del("Content-Type")
		h.Del("Content-Length")
		w.WriteHeader(status)
		return 0, nil
	}

	var payload []byte
	switch b := body.(type) {
	case nil:
		h.Set("Content-Length", "0")
		w.WriteHeader(status)
		return 0, nil
	case string:
		setDefaultType(h, textType(b))
		payload = []byte(b)
	case []byte:
		setDefaultType(h, "application/octet-stream")
		payload = b
	case io.Reader:
		setDefaultType(h, "application/octet-stream")
		w.WriteHeader(status)
		return io.Copy(w, b)
	case proto.Message:
		return writeEncoded(w, status, NewProtoCodec(), b)
	default:
		return writeEncoded(w, status, NewJSONCodec(), b)
	}

	h.Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	n, err := w.Write(payload)
	return int64(n), err
}

func writeEncoded(w http.ResponseWriter, status int, c Codec, v any) (int64, error) {
	payload, err := c.Marshal(v)
	if err != nil {
		return 0, &EncodeError{Err: err}
	}
	setDefaultType(w.Header(), c.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	n, err := w.Write(payload)
	return int64(n), err
}

func setDefaultType(h http.Header, contentType string) {
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
}

func textType(s string) string {
	if strings.HasPrefix(strings.TrimLeft(s, " \t\r\n"), "<") {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
