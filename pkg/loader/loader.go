// Package loader implements a minimal HTTP byte-range chunk loader: it
// fetches a remote MP4 in fixed-size windows and feeds the growing
// buffer to a demux.Demuxer, following spec.md's "incremental chunk"
// contract. It is not a general-purpose fetch client: no retries, no
// backoff, no redirect-reuse beyond the one-shot handling below.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mp4demux/pkg/mp4log"
)

// Options carries the loader-only configuration knob from spec.md §6
// that doesn't belong on demux.Options.
type Options struct {
	// ReuseRedirectedURL makes subsequent range requests target the
	// URL that finally answered the initial HEAD request (after the
	// client followed any redirects) instead of the original URL.
	ReuseRedirectedURL bool

	// ChunkSize is the byte-range window requested per round trip.
	// Zero selects DefaultChunkSize.
	ChunkSize int64

	// Timeout bounds each individual range request.
	Timeout time.Duration
}

// DefaultChunkSize is used when Options.ChunkSize is zero.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Sink is the subset of demux.Demuxer the loader drives. It is defined
// here rather than imported from pkg/demux so pkg/loader never needs
// to know about box-parsing internals, only the byte-feeding contract.
type Sink interface {
	ParseChunks(chunk []byte, byteStart uint64) int
}

// Loader fetches one HTTP(S) resource in chunkSize windows, accumulates
// the full response body in memory, and re-delivers the accumulated
// buffer to a Sink after every window arrives.
//
// This buffers the whole stream rather than windowing it: the demuxer
// indexes samples by absolute file offset, so every downstream
// component needs the bytes to still be addressable long after they
// first arrived.
type Loader struct {
	client *http.Client
	opts   Options
	log    *mp4log.Logger

	url string
	buf []byte
}

// New builds a Loader for url using opts. A nil log discards advisory
// messages.
func New(url string, opts Options, log *mp4log.Logger) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if log == nil {
		log = mp4log.Discard()
	}
	return &Loader{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    log,
		url:    url,
	}
}

// Run fetches the resource range by range, feeding sink after every
// range arrives, until the server reports the full length has been
// read or ctx is cancelled.
func (l *Loader) Run(ctx context.Context, sink Sink) error {
	total, err := l.contentLength(ctx)
	if err != nil {
		return fmt.Errorf("loader: %w", err)
	}

	var offset int64
	for offset < total || total == 0 {
		end := offset + l.opts.ChunkSize - 1
		if total > 0 && end > total-1 {
			end = total - 1
		}

		body, read, err := l.fetchRange(ctx, offset, end)
		if err != nil {
			return fmt.Errorf("loader: range %d-%d: %w", offset, end, err)
		}
		l.buf = append(l.buf, body...)
		sink.ParseChunks(l.buf, 0)

		offset += read
		if read == 0 || (total == 0 && read < l.opts.ChunkSize) {
			break
		}
	}

	return nil
}

// contentLength issues a HEAD request to discover the resource size.
// Some servers don't report Content-Length on HEAD; 0 tells Run to
// fall back to reading until a short range comes back.
func (l *Loader) contentLength(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, l.url, nil)
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if l.opts.ReuseRedirectedURL {
		if loc := resp.Header.Get("Location"); loc != "" {
			l.url = loc
		} else if resp.Request != nil && resp.Request.URL != nil {
			l.url = resp.Request.URL.String()
		}
	}

	if resp.ContentLength > 0 {
		return resp.ContentLength, nil
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n, nil
		}
	}

	return 0, nil
}

func (l *Loader) fetchRange(ctx context.Context, start, end int64) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read body: %w", err)
	}

	l.log.Debug().Src("loader").Msgf("fetched %d-%d (%d bytes)", start, end, len(body))

	return body, int64(len(body)), nil
}

// RunFile feeds sink the entire contents of a local file in one shot,
// used by cmd/mp4probe when pointed at a path instead of a URL.
func RunFile(path string, sink Sink) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	sink.ParseChunks(buf, 0)
	return nil
}

// IsURL reports whether target looks like an http(s) URL rather than a
// local file path.
func IsURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
