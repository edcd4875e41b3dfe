package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		keyword    string
		downloadID string
		want       string
	}{
		{"Song Artist", "abc", "song-artist_abc.mp3"},
		{"Bài Hát Hay", "5f2k", "bai-hat-hay_5f2k.mp3"},
		{"Track / With: Symbols!", "id1", "track-with-symbols_id1.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName(tt.keyword, tt.downloadID))
		})
	}
}

func TestObjectName_Deterministic(t *testing.T) {
	first := ObjectName("Song Artist", "abc")
	second := ObjectName("Song Artist", "abc")
	assert.Equal(t, first, second)

	// Same title, different ids must not collide.
	assert.NotEqual(t, ObjectName("Song Artist", "abc"), ObjectName("Song Artist", "def"))
}

func TestBuildArgs(t *testing.T) {
	f := New(&Config{
		BinaryPath:          "/usr/local/bin/yt-dlp",
		TempDir:             "/tmp/downloads",
		Timeout:             10 * time.Minute,
		SocketTimeout:       60 * time.Second,
		Retries:             2,
		FragmentRetries:     3,
		ConcurrentFragments: 8,
		DownloaderArgs:      `"-x 16 -s 16 -k 1M"`,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	args := f.buildArgs("http://proxy:8159", "/tmp/downloads/song_abc.%(ext)s", "https://service/track/abc")

	assert.Contains(t, args, "--proxy")
	assert.Contains(t, args, "http://proxy:8159")
	assert.Contains(t, args, "--extract-audio")
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "--downloader")
	assert.Contains(t, args, "aria2c")
	assert.Contains(t, args, "/tmp/downloads/song_abc.%(ext)s")
	assert.Equal(t, "https://service/track/abc", args[len(args)-1])
}

func TestBuildArgs_NoExternalDownloader(t *testing.T) {
	f := New(&Config{SocketTimeout: 60 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	args := f.buildArgs("http://proxy:8159", "/tmp/out.%(ext)s", "https://service/track/abc")

	assert.NotContains(t, args, "--downloader")
	assert.NotContains(t, args, "aria2c")
}

func TestFindArtifact(t *testing.T) {
	dir := t.TempDir()

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	write("song-artist_abc.mp3")
	write("song-artist_abc.info.json")
	write("other-song_xyz.mp3")

	artifact, err := findArtifact(dir, "song-artist_abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "song-artist_abc.mp3"), artifact)
}

func TestFindArtifact_NoAudioFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song_abc.part"), []byte("x"), 0o644))

	_, err := findArtifact(dir, "song_abc")
	assert.ErrorIs(t, err, domain.ErrNoArtifact)
}

// fakeTool writes a shell script standing in for yt-dlp.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestFetch_Success(t *testing.T) {
	dir := t.TempDir()
	expected := filepath.Join(dir, "song-artist_abc.mp3")
	bin := fakeTool(t, fmt.Sprintf("touch %s", expected))

	f := New(&Config{
		BinaryPath:    bin,
		TempDir:       dir,
		Timeout:       10 * time.Second,
		SocketTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	artifact, err := f.Fetch(context.Background(), &domain.Job{
		DownloadID: "abc",
		Keyword:    "Song Artist",
		SourceURL:  "https://service/track/abc",
	}, "http://proxy:8159")

	require.NoError(t, err)
	assert.Equal(t, expected, artifact)
}

func TestFetch_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	bin := fakeTool(t, "echo 'ERROR: unable to download' >&2; exit 1")

	f := New(&Config{
		BinaryPath:    bin,
		TempDir:       dir,
		Timeout:       10 * time.Second,
		SocketTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := f.Fetch(context.Background(), &domain.Job{
		DownloadID: "xyz",
		Keyword:    "Other Song",
		SourceURL:  "https://service/track/xyz",
	}, "http://proxy:8159")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to download")
}

func TestFetch_NoArtifactProduced(t *testing.T) {
	dir := t.TempDir()
	bin := fakeTool(t, "exit 0")

	f := New(&Config{
		BinaryPath:    bin,
		TempDir:       dir,
		Timeout:       10 * time.Second,
		SocketTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := f.Fetch(context.Background(), &domain.Job{
		DownloadID: "xyz",
		Keyword:    "Other Song",
		SourceURL:  "https://service/track/xyz",
	}, "http://proxy:8159")

	assert.ErrorIs(t, err, domain.ErrNoArtifact)
}
