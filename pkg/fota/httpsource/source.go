// Package httpsource reads firmware images from an HTTP server with
// Range requests.
package httpsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
)

var (
	// ErrNoLength indicates the server reported no content length.
	ErrNoLength = errors.New("no content length")
	// ErrShortRange indicates the server returned less than requested.
	ErrShortRange = errors.New("short range")
)

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// Source implements fota.ImageSource and fota.Connectivity.
type Source struct {
	URL    string
	Client *http.Client
	// ChunkSize is the largest range of a single request.
	ChunkSize int
	// ChunkPause is waited between the requests of a ReadRange.
	ChunkPause time.Duration
	// ProbeTimeout bounds the HEAD request Connected sends while the
	// server is unreachable.
	ProbeTimeout time.Duration

	lock        sync.Mutex
	unreachable bool
}

// New creates a Source.
func New(imageURL string) *Source {
	return &Source{
		URL:          imageURL,
		Client:       &http.Client{Timeout: 30 * time.Second},
		ChunkSize:    2048,
		ChunkPause:   50 * time.Millisecond,
		ProbeTimeout: 5 * time.Second,
	}
}

// Connected reports false after a request failed to reach the server.
// While unreachable, each call sends a HEAD request and reports whether
// the server answered it.
func (s *Source) Connected() bool {
	s.lock.Lock()
	unreachable := s.unreachable
	s.lock.Unlock()
	if !unreachable {
		return true
	}
	ctx := context.Background()
	if s.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ProbeTimeout)
		defer cancel()
	}
	resp, err := s.do(ctx, http.MethodHead, "")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// TotalLength implements fota.ImageSource.
func (s *Source) TotalLength(ctx context.Context) (int64, error) {
	resp, err := s.do(ctx, http.MethodHead, "")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Code: resp.StatusCode}
	}
	if resp.ContentLength <= 0 {
		return 0, ErrNoLength
	}
	return resp.ContentLength, nil
}

// ReadRange implements fota.ImageSource.
func (s *Source) ReadRange(ctx context.Context, offset int64, n int) ([]byte, error) {
	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = n
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(out) > 0 && s.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.ChunkPause):
			}
		}
		size := n - len(out)
		if size > chunk {
			size = chunk
		}
		start := offset + int64(len(out))
		data, err := s.get(ctx, start, size)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, start int64, size int) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("bytes=%d-%d", start, start+int64(size)-1))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return nil, fmt.Errorf("range %d+%d: %w", start, size, ErrShortRange)
	}
	return data, nil
}

func (s *Source) do(ctx context.Context, method, byteRange string) (*http.Response, error) {
	req, err := http.NewRequest(method, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	resp, err := s.Client.Do(req)
	var urlErr *url.Error
	switch {
	case err == nil:
		s.setUnreachable(false)
	case errors.As(err, &urlErr) && (ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		s.setUnreachable(true)
	}
	if err != nil {
		glog.V(2).Infof("%s %s %s: %v", method, s.URL, byteRange, err)
		return nil, err
	}
	return resp, nil
}

func (s *Source) setUnreachable(unreachable bool) {
	s.lock.Lock()
	s.unreachable = unreachable
	s.lock.Unlock()
}
