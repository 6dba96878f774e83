// Package extract pulls the inline JSON.parse payloads out of page HTML.
//
// The target site embeds its data as script blocks of the form
//
//	varName = JSON.parse('<backslash-escaped json>')
//
// with the payload escaped using \xHH byte escapes inside a single-quoted
// string. Extraction scans every script tag and decodes each match.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/footdata/understat-crawler/internal/crawl"
)

var pattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*JSON\.parse\('(.*?)'\)`)

// Extractor implements crawl.Extractor over script-embedded JSON.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the decoded payloads keyed by variable name. A page
// without a matching script yields an empty result; that is not an error.
func (e *Extractor) Extract(html []byte) (crawl.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := crawl.Result{}
	var extractErr error
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := pattern.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		name, escaped := m[1], m[2]
		decoded, err := unescape(escaped)
		if err != nil {
			extractErr = fmt.Errorf("decode %s payload: %w", name, err)
			return false
		}
		if !json.Valid(decoded) {
			extractErr = fmt.Errorf("%s payload is not valid JSON", name)
			return false
		}
		res[name] = json.RawMessage(decoded)
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}
	return res, nil
}

// unescape decodes the backslash escapes used inside the single-quoted
// JSON.parse argument. \xHH becomes the raw byte; simple escapes are
// resolved; anything else (notably \uXXXX, which is valid JSON) is kept
// verbatim for the JSON decoder.
func unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("dangling escape at offset %d", i)
		}
		i++
		switch s[i] {
		case 'x':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated hex escape at offset %d", i-1)
			}
			b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("hex escape at offset %d: %w", i-1, err)
			}
			out = append(out, byte(b))
			i += 2
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '\'', '/':
			out = append(out, s[i])
		default:
			out = append(out, '\\', s[i])
		}
	}
	return out, nil
}
