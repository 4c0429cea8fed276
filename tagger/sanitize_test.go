package tagger

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{`AC/DC: Back In Black?`, "ACDC Back In Black"},
		{`<"quoted*name">`, "quotedname"},
		{`a\b/c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"  trimmed  ", "trimmed"},
		{"dots...", "dots"},
		{"tab\there", "tabhere"},
		{"CON", ""},
		{"lpt1", ""},
		{"CONCERT", "CONCERT"},
		{"", ""},
		{"日本語タイトル", "日本語タイトル"},
	}

	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTextLengthCap(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := SanitizeText(long)
	if len(got) != maxNameBytes {
		t.Errorf("length = %d; want %d", len(got), maxNameBytes)
	}

	// Multi-byte input must not be cut mid-rune.
	wide := strings.Repeat("語", 200)
	got = SanitizeText(wide)
	if len(got) > maxNameBytes {
		t.Errorf("length = %d; want <= %d", len(got), maxNameBytes)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatal("sanitized name contains a torn rune")
		}
	}
}

func TestDetectImageExt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpg"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBP")...), "webp"},
		{"empty", nil, "jpg"},
	}

	for _, tt := range tests {
		if got := DetectImageExt(tt.data); got != tt.want {
			t.Errorf("%s: DetectImageExt = %q; want %q", tt.name, got, tt.want)
		}
	}
}
