package deps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/veery/veery/fetch"
)

// mockTool creates a test tool with a fixed check result.
func mockTool(id string, exists bool, version string, checkErr error) *Tool {
	return &Tool{
		ID:          id,
		Name:        id + " Name",
		Description: id + " Description",
		TargetDir:   "/test/" + id,
		Check: func(ctx context.Context) (bool, string, error) {
			return exists, version, checkErr
		},
		Install: func(ctx context.Context, progress fetch.ProgressFunc) error {
			return nil
		},
	}
}

// swapRegistry replaces the global registry for the duration of a test.
func swapRegistry(t *testing.T) {
	t.Helper()
	mu.Lock()
	origRegistry, origOrder := registry, order
	registry = make(map[string]*Tool)
	order = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		registry = origRegistry
		order = origOrder
		mu.Unlock()
	})
}

func TestRegisterAndGet(t *testing.T) {
	swapRegistry(t)

	Register(mockTool("test-tool", true, "1.0.0", nil))

	retrieved, ok := Get("test-tool")
	if !ok {
		t.Fatal("Get() should find registered tool")
	}
	if retrieved.Name != "test-tool Name" {
		t.Errorf("Retrieved tool Name = %q; want %q", retrieved.Name, "test-tool Name")
	}

	if _, ok := Get("nonexistent-tool-xyz"); ok {
		t.Error("Get() should return false for nonexistent tool")
	}
}

func TestAllPreservesRegistrationOrder(t *testing.T) {
	swapRegistry(t)

	Register(mockTool("bbb", true, "1", nil))
	Register(mockTool("aaa", true, "1", nil))

	tools := All()
	if len(tools) != 2 {
		t.Fatalf("All() returned %d tools; want 2", len(tools))
	}
	if tools[0].ID != "bbb" || tools[1].ID != "aaa" {
		t.Errorf("All() order = [%s, %s]; want [bbb, aaa]", tools[0].ID, tools[1].ID)
	}
}

func TestStatus(t *testing.T) {
	swapRegistry(t)

	Register(mockTool("installed-tool", true, "2.1", nil))
	Register(mockTool("missing-tool", false, "", nil))
	Register(mockTool("broken-tool", false, "", errors.New("probe exploded")))

	infos := Status(context.Background())
	if len(infos) != 3 {
		t.Fatalf("Status() returned %d entries; want 3", len(infos))
	}

	if infos[0].Status != StatusInstalled || infos[0].Version != "2.1" {
		t.Errorf("installed-tool status = %+v; want installed 2.1", infos[0])
	}
	if infos[1].Status != StatusNotInstalled {
		t.Errorf("missing-tool status = %s; want %s", infos[1].Status, StatusNotInstalled)
	}
	if infos[2].Status != StatusNotInstalled || infos[2].Error != "probe exploded" {
		t.Errorf("broken-tool status = %+v; want not_installed with error", infos[2])
	}
}

func TestStartInstallUnknownTool(t *testing.T) {
	swapRegistry(t)

	if err := StartInstall(context.Background(), "no-such-tool"); err == nil {
		t.Error("StartInstall() should reject unknown tool IDs")
	}
}

func TestStartInstallRejectsConcurrent(t *testing.T) {
	swapRegistry(t)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	tool := mockTool("slow-tool", false, "", nil)
	tool.Install = func(ctx context.Context, progress fetch.ProgressFunc) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}
	Register(tool)

	if err := StartInstall(context.Background(), "slow-tool"); err != nil {
		t.Fatalf("StartInstall() error: %v", err)
	}
	<-started

	if err := StartInstall(context.Background(), "slow-tool"); err == nil {
		t.Error("StartInstall() should reject a second install while one is running")
	}

	infos := Status(context.Background())
	if infos[0].Status != StatusDownloading {
		t.Errorf("status during install = %s; want %s", infos[0].Status, StatusDownloading)
	}

	close(release)
	waitForIdle(t, "slow-tool")
}

func TestStartInstallReportsProgress(t *testing.T) {
	swapRegistry(t)

	release := make(chan struct{})
	reported := make(chan struct{})
	tool := mockTool("meter-tool", false, "", nil)
	tool.Install = func(ctx context.Context, progress fetch.ProgressFunc) error {
		progress(fetch.Progress{Downloaded: 50, Total: 200, Speed: 4096})
		close(reported)
		<-release
		return nil
	}
	Register(tool)

	if err := StartInstall(context.Background(), "meter-tool"); err != nil {
		t.Fatalf("StartInstall() error: %v", err)
	}
	<-reported

	infos := Status(context.Background())
	if infos[0].Status != StatusDownloading {
		t.Fatalf("status = %s; want %s", infos[0].Status, StatusDownloading)
	}
	if infos[0].Progress != 25 {
		t.Errorf("progress = %v; want 25", infos[0].Progress)
	}
	if infos[0].Speed != 4096 {
		t.Errorf("speed = %d; want 4096", infos[0].Speed)
	}

	close(release)
	waitForIdle(t, "meter-tool")
}

func TestStartInstallRecordsError(t *testing.T) {
	swapRegistry(t)

	tool := mockTool("failing-tool", false, "", nil)
	tool.Install = func(ctx context.Context, progress fetch.ProgressFunc) error {
		return errors.New("network unplugged")
	}
	Register(tool)

	if err := StartInstall(context.Background(), "failing-tool"); err != nil {
		t.Fatalf("StartInstall() error: %v", err)
	}
	waitForIdle(t, "failing-tool")

	infos := Status(context.Background())
	if infos[0].Error != "network unplugged" {
		t.Errorf("install error = %q; want %q", infos[0].Error, "network unplugged")
	}
}

// waitForIdle blocks until the named tool has no in-flight install.
func waitForIdle(t *testing.T, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.RLock()
		_, busy := installing[id]
		mu.RUnlock()
		if !busy {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("install of %s did not finish", id)
}

func TestParseFFmpegVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"ffmpeg version N-122344-g649a4e98f4-20260103 Copyright (c)", "N-122344-g649a4e98f4-20260103"},
		{"ffmpeg version 6.0 Copyright (c) 2000-2023", "6.0"},
		{"not ffmpeg output", ""},
	}
	for _, tt := range tests {
		if got := parseFFmpegVersion(tt.output); got != tt.want {
			t.Errorf("parseFFmpegVersion(%q) = %q; want %q", tt.output, got, tt.want)
		}
	}
}

func TestResolvePrefersConfiguredPath(t *testing.T) {
	swapRegistry(t)
	Register(mockTool("some-tool", false, "", nil))

	if got := Resolve("some-tool", "/opt/custom/some-tool"); got != "/opt/custom/some-tool" {
		t.Errorf("Resolve() = %q; want configured path", got)
	}
}
