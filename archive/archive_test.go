package archive

import (
	"context"
	"testing"
)

func TestNewDisabledWithoutBucket(t *testing.T) {
	uploader, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if uploader != nil {
		t.Error("New() without a bucket should return a nil uploader")
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"", "Song.flac", "Song.flac"},
		{"music", "Song.flac", "music/Song.flac"},
		{"music/", "Song.flac", "music/Song.flac"},
		{"music/2026", "Song.flac", "music/2026/Song.flac"},
	}
	for _, tt := range tests {
		u := &Uploader{prefix: tt.prefix}
		if got := u.objectKey(tt.name); got != tt.want {
			t.Errorf("objectKey(%q) with prefix %q = %q; want %q", tt.name, tt.prefix, got, tt.want)
		}
	}
}
