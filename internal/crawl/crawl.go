// Package crawl defines the core types and contracts shared by the crawl
// pipeline: identity keys, season labels, extraction results, and the
// collaborator interfaces for fetching, extraction, and persistence.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

// Key identifies one fetchable resource and its storage location. Segments
// are ordered and non-empty; the joined form doubles as the blob path, so a
// key is unique per logical resource within a run.
type Key []string

// Validate checks the key invariants.
func (k Key) Validate() error {
	if len(k) == 0 {
		return errors.New("key requires at least one segment")
	}
	for i, seg := range k {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("key segment %d is empty", i)
		}
	}
	return nil
}

// Path returns the storage path derived from the key segments.
func (k Key) Path() string {
	return path.Join(k...)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// Season is a "YYYY-YYYY" season label. The full label appears in identity
// keys; only the start year appears in fetch URLs.
type Season string

// Validate checks the label is hyphen-separated with two parseable years.
func (s Season) Validate() error {
	start, end, ok := strings.Cut(string(s), "-")
	if !ok {
		return fmt.Errorf("season %q: want form YYYY-YYYY", s)
	}
	for _, part := range []string{start, end} {
		if _, err := strconv.Atoi(part); err != nil {
			return fmt.Errorf("season %q: %q is not a year", s, part)
		}
	}
	return nil
}

// StartYear returns the leading year, the segment page URLs are built from.
func (s Season) StartYear() string {
	start, _, _ := strings.Cut(string(s), "-")
	return start
}

// Result is one page's extraction output: embedded variable name mapped to
// its raw JSON value. An empty Result is valid; pages without an embedded
// data script extract to nothing.
type Result map[string]json.RawMessage

// Encode serializes the result in a stable form: object keys sorted, values
// emitted verbatim. The same page content always encodes to the same bytes.
func (r Result) Encode() ([]byte, error) {
	if r == nil {
		r = Result{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}

// DecodeResult parses bytes previously produced by Encode.
func DecodeResult(b []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}

// Fetcher retrieves the body of a single URL. Implementations that recover
// from throttling may block for an unbounded time; callers must tolerate
// suspension of one fetch without blocking siblings.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns raw page content into a Result.
type Extractor interface {
	Extract(html []byte) (Result, error)
}

// BlobStore durably persists a payload at a path, creating any missing
// intermediate structure. Concurrent puts to distinct paths must not
// interfere; concurrent creation of shared parents must be tolerated.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock abstracts time so backoff sleeps are observable in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
