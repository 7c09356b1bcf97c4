// Package stream decodes the line-oriented protocol used by the research
// backend: only lines prefixed "data: " carry meaning, with a JSON payload
// or the literal [DONE] terminator.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Kind classifies a decoded stream event.
type Kind int

const (
	// KindContent carries a text fragment to append.
	KindContent Kind = iota
	// KindError carries an error reported by the producer in-band.
	KindError
	// KindDone ends the stream.
	KindDone
)

// Event is one decoded protocol event.
type Event struct {
	Kind    Kind
	Content string
	Err     string
}

type payload struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Reader decodes protocol events from a byte stream. Lines are buffered
// internally, so a read boundary falling inside a payload cannot corrupt a
// fragment. After [DONE] (or end of input) every further line is ignored.
type Reader struct {
	br   *bufio.Reader
	done bool
}

// NewReader wraps r. The caller retains ownership of the underlying stream
// and is responsible for closing it.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next event. It returns io.EOF once the stream is
// exhausted; a stream that ends without the [DONE] sentinel yields a final
// KindDone event before io.EOF, so callers always observe termination.
func (r *Reader) Next() (Event, error) {
	for {
		if r.done {
			return Event{}, io.EOF
		}

		line, err := r.br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, err
		}
		atEOF := errors.Is(err, io.EOF)

		if ev, ok := r.decodeLine(line); ok {
			if ev.Kind == KindDone {
				r.done = true
			}
			return ev, nil
		}

		if atEOF {
			// Producer closed without the sentinel; finalize anyway.
			r.done = true
			return Event{Kind: KindDone}, nil
		}
	}
}

// decodeLine extracts an event from one protocol line. Lines without the
// data prefix are ignored; malformed JSON payloads are logged and skipped
// since the protocol has no retransmission.
func (r *Reader) decodeLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	body := strings.TrimSpace(line[len(dataPrefix):])
	if body == doneSentinel {
		return Event{Kind: KindDone}, true
	}
	if body == "" {
		return Event{}, false
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		slog.Warn("stream: skipping malformed data line", slog.String("error", err.Error()))
		return Event{}, false
	}
	if p.Error != "" {
		return Event{Kind: KindError, Err: p.Error}, true
	}
	return Event{Kind: KindContent, Content: p.Content}, true
}
