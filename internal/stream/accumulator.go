// Package stream reassembles incremental model output into one reply.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"
)

type State int

const (
	Accumulating State = iota
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "ACCUMULATING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// sentinels are fragments dropped without touching the buffer.
var sentinels = map[string]struct{}{
	"<think>":  {},
	"</think>": {},
	"":         {},
}

// Chunk is one newline-delimited unit of a streamed generation.
type Chunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Accumulator is owned by a single request and is not safe for concurrent
// use.
type Accumulator struct {
	state     State
	text      strings.Builder
	lastChar  rune
	output    string
	err       error
	convErr   error
	converter Converter
}

func NewAccumulator(conv Converter) *Accumulator {
	if conv == nil {
		conv = NewMarkdown()
	}
	return &Accumulator{converter: conv}
}

func (a *Accumulator) State() State { return a.state }

// Plain is the accumulated text before conversion. Empty once FAILED.
func (a *Accumulator) Plain() string {
	if a.state == Failed {
		return ""
	}
	return a.text.String()
}

// ConversionErr reports a degraded conversion after DONE, if any.
func (a *Accumulator) ConversionErr() error { return a.convErr }

// Add appends one fragment. It returns the exact text appended (including
// any separating space) and whether the fragment was kept.
func (a *Accumulator) Add(fragment string) (string, bool) {
	if a.state != Accumulating {
		return "", false
	}

	frag := strings.TrimSpace(fragment)
	if _, skip := sentinels[frag]; skip {
		return "", false
	}

	appended := frag
	if a.text.Len() > 0 && !unicode.IsSpace(a.lastChar) {
		appended = " " + frag
	}
	a.text.WriteString(appended)
	a.lastChar, _ = utf8.DecodeLastRuneInString(frag)

	return appended, true
}

// Complete moves to DONE and returns the converted output. A conversion
// failure yields "" rather than an error.
func (a *Accumulator) Complete() string {
	switch a.state {
	case Done:
		return a.output
	case Failed:
		return ""
	}

	a.state = Done
	out, err := a.converter.Convert(a.text.String())
	if err != nil {
		a.convErr = &ConversionError{Err: err}
		log.Printf("WARNING: %v", a.convErr)
		out = ""
	}
	a.output = out
	return a.output
}

// Fail moves to FAILED and discards the partial text.
func (a *Accumulator) Fail(cause error) error {
	if a.state == Failed {
		return a.err
	}
	if a.state == Done {
		return nil
	}

	a.state = Failed
	a.text.Reset()
	a.lastChar = 0
	a.err = &StreamError{Err: cause}
	return a.err
}

// maxUnitBytes caps one buffered chunk line. Longer lines are drained and
// skipped like any other malformed unit.
const maxUnitBytes = 1 << 20

var errUnitTooLong = errors.New("chunk exceeds 1 MiB")

// Consume drains newline-delimited JSON chunks from r in arrival order.
// onChunk, when set, observes each appended piece of text.
func (a *Accumulator) Consume(ctx context.Context, r io.Reader, onChunk func(string)) (string, error) {
	reader := bufio.NewReaderSize(r, 64*1024)

	for {
		if err := ctx.Err(); err != nil {
			return "", a.Fail(err)
		}

		raw, oversized, readErr := readUnit(reader)
		if readErr != nil && readErr != io.EOF {
			return "", a.Fail(readErr)
		}

		if oversized {
			log.Printf("Skipping %v", &ParseError{Err: errUnitTooLong})
		} else if line := strings.TrimSpace(string(raw)); line != "" {
			var c Chunk
			if err := json.Unmarshal([]byte(line), &c); err != nil {
				log.Printf("Skipping %v", &ParseError{Line: line, Err: err})
			} else {
				if c.Error != "" {
					return "", a.Fail(errors.New(c.Error))
				}
				if appended, ok := a.Add(c.Response); ok && onChunk != nil {
					onChunk(appended)
				}
				if c.Done {
					return a.Complete(), nil
				}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", a.Fail(err)
	}
	return "", a.Fail(ErrTruncated)
}

// readUnit returns the next line without its terminator. A line longer than
// maxUnitBytes is read to its end but not kept, and reported as oversized.
func readUnit(br *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	oversized := false
	for {
		part, isPrefix, err := br.ReadLine()
		if err != nil {
			return buf, oversized, err
		}
		if !oversized {
			if len(buf)+len(part) > maxUnitBytes {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, part...)
			}
		}
		if !isPrefix {
			return buf, oversized, nil
		}
	}
}
