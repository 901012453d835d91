package httpclient

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip"

// decodingTransport asks for compressed responses and hands callers a plain
// body. Setting Accept-Encoding ourselves disables net/http's transparent
// gzip, so both encodings are unwrapped here.
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Method != http.MethodHead {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// decodeBody swaps resp.Body for a decompressing reader when the server used
// br or gzip. Unknown encodings are left untouched. A bodiless reply (204, 304
// or an empty gzip stream) is passed on with an empty body.
func decodeBody(resp *http.Response) error {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if enc == "" {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified || resp.ContentLength == 0 {
		resp.Header.Del("Content-Encoding")
		return nil
	}
	switch enc {
	case "br":
		resp.Body = &wrappedBody{Reader: brotli.NewReader(resp.Body), closer: resp.Body}
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		switch {
		case errors.Is(err, io.EOF):
			resp.Body = &wrappedBody{Reader: strings.NewReader(""), closer: resp.Body}
		case err != nil:
			return fmt.Errorf("gzip response: %w", err)
		default:
			resp.Body = &wrappedBody{Reader: zr, closer: multiCloser{zr, resp.Body}}
		}
	default:
		return nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

type wrappedBody struct {
	io.Reader
	closer io.Closer
}

func (b *wrappedBody) Close() error { return b.closer.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
