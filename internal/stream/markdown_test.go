package stream

import (
	"strings"
	"testing"
)

func TestMarkdown_Convert(t *testing.T) {
	md := NewMarkdown()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"emphasis", "some *emphasis* here", "<p>some <em>emphasis</em> here</p>"},
		{"whitespace collapsed", "a\n\n   b", "<p>a b</p>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := md.Convert(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMarkdown_OmitsRawHTML(t *testing.T) {
	got, err := NewMarkdown().Convert(`hello <script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("expected raw html to be omitted, got %q", got)
	}
}
