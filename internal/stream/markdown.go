package stream

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Converter turns accumulated plain text into render-safe markup.
type Converter interface {
	Convert(text string) (string, error)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Markdown renders with goldmark. Raw HTML in the source is omitted
// (goldmark's default), so the output is safe to inject into a page.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (m *Markdown) Convert(text string) (out string, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	text = whitespaceRun.ReplaceAllString(text, " ")

	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("renderer panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
