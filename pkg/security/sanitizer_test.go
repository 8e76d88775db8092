package security

import (
	"strings"
	"testing"
)

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Plain text", input: "hello there", want: "hello there"},
		{name: "Trims whitespace", input: "  hi \n", want: "hi"},
		{name: "Whitespace only", input: " \t\n ", want: ""},
		{name: "Null bytes", input: "a\x00b", want: "ab"},
		{name: "Comparison operators", input: "if x<y and y>z then", want: "if x<y and y>z then"},
		{name: "Escaped entities stay escaped", input: "&lt;b&gt;hi", want: "&lt;b&gt;hi"},
		{name: "Ampersand entity", input: "a &amp; b", want: "a &amp; b"},
		{name: "Tag names as text", input: "use <br> tags", want: "use <br> tags"},
		{name: "Punctuation", input: "don't & won't", want: "don't & won't"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMessage(tt.input); got != tt.want {
				t.Errorf("NormalizeMessage(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMessageTooLong(t *testing.T) {
	if MessageTooLong(strings.Repeat("é", MaxMessageLength)) {
		t.Error("content at the limit counted as too long")
	}
	if !MessageTooLong(strings.Repeat("a", MaxMessageLength+1)) {
		t.Error("content over the limit not reported")
	}
}

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Ana Lima", want: "Ana Lima"},
		{input: "<b>Ana</b>  Lima", want: "Ana Lima"},
		{input: "<script>alert(1)</script>Bo", want: "Bo"},
		{input: "O'Brien & Co", want: "O'Brien & Co"},
	}
	for _, tt := range tests {
		if got := SanitizeDisplayName(tt.input); got != tt.want {
			t.Errorf("SanitizeDisplayName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := map[string]string{
		"  Al ":    "al",
		"john_d":   "john_d",
		"50%_off\\": "50%_off\\",
	}
	for input, want := range tests {
		if got := NormalizeQuery(input); got != want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", input, got, want)
		}
	}
}
