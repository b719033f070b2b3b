package prompt

import (
	"fmt"
	"strings"
)

const antiPrefixDirective = `Important: Respond directly without using any prefixes like "BOT:", "ASSISTANT:", or similar markers.`

var formatDirectives = map[string]string{
	"default":   "Provide a natural response without any prefixes.",
	"bulleted":  "Format your response as a bulleted list where appropriate.",
	"paragraph": "Format your response in clear, well-structured paragraphs.",
	"stepwise":  "Format your response as numbered steps.",
}

var toneDirectives = map[string]string{
	"default":      `Respond directly without any prefixes like "BOT:" or "ASSISTANT:".`,
	"professional": "Maintain a professional tone without any prefixes.",
	"friendly":     "Keep a conversational tone without any prefixes.",
	"concise":      "Be brief and direct without any prefixes.",
}

// Options selects the response-format and tone directives. Empty values
// mean "default".
type Options struct {
	Format string
	Tone   string
}

// Formatter wraps windowed context with the instruction block. It is
// resolved once from Options and safe for concurrent use.
type Formatter struct {
	format string
	tone   string
}

func NewFormatter(opts Options) (*Formatter, error) {
	formatKey := strings.ToLower(strings.TrimSpace(opts.Format))
	if formatKey == "" {
		formatKey = "default"
	}
	toneKey := strings.ToLower(strings.TrimSpace(opts.Tone))
	if toneKey == "" {
		toneKey = "default"
	}

	format, ok := formatDirectives[formatKey]
	if !ok {
		return nil, fmt.Errorf("unknown response format %q (want default, bulleted, paragraph or stepwise)", opts.Format)
	}
	tone, ok := toneDirectives[toneKey]
	if !ok {
		return nil, fmt.Errorf("unknown tone %q (want default, professional, friendly or concise)", opts.Tone)
	}

	return &Formatter{format: format, tone: tone}, nil
}

// Format returns the outbound prompt. The context is placed last, so the
// result ends with the user's newest prompt.
func (f *Formatter) Format(context string) string {
	var b strings.Builder
	b.WriteString(antiPrefixDirective)
	b.WriteString("\n\n")
	b.WriteString(f.format)
	b.WriteString("\n")
	b.WriteString(f.tone)
	b.WriteString("\n\nQuery: ")
	b.WriteString(context)
	return b.String()
}
