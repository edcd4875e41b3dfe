package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
)

// audioExtensions are the output formats yt-dlp may leave behind; exactly
// one matching file is expected per fetch.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".opus": true,
	".webm": true,
}

// Config holds the external fetch tool configuration.
type Config struct {
	BinaryPath          string
	TempDir             string
	Timeout             time.Duration
	SocketTimeout       time.Duration
	Retries             int
	FragmentRetries     int
	ConcurrentFragments int
	DownloaderArgs      string // aria2c tuning, empty disables the external downloader
}

// Fetcher invokes yt-dlp to produce one local audio artifact per job.
type Fetcher struct {
	config *Config
	logger *slog.Logger
}

func New(config *Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		config: config,
		logger: logger,
	}
}

// BaseName returns the deterministic artifact name for a job, without
// extension. The slug comes from the keyword; the id suffix keeps names
// unique when two jobs slug to the same title.
func BaseName(keyword, downloadID string) string {
	return slug.Make(keyword) + "_" + downloadID
}

// ObjectName returns the storage key for a job's published artifact.
func ObjectName(keyword, downloadID string) string {
	return BaseName(keyword, downloadID) + ".mp3"
}

// Fetch runs yt-dlp against the job's source URL through the given proxy and
// returns the path of the single local artifact it produced. The caller owns
// the artifact and must remove it.
func (f *Fetcher) Fetch(ctx context.Context, job *domain.Job, proxy string) (string, error) {
	if err := os.MkdirAll(f.config.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	base := BaseName(job.Keyword, job.DownloadID)
	outputTemplate := filepath.Join(f.config.TempDir, base+".%(ext)s")

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	args := f.buildArgs(proxy, outputTemplate, job.SourceURL)
	cmd := exec.CommandContext(ctx, f.config.BinaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Info("Starting fetch",
		slog.String("download_id", job.DownloadID),
		slog.String("source_url", job.SourceURL),
	)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	artifact, err := findArtifact(f.config.TempDir, base)
	if err != nil {
		return "", err
	}

	f.logger.Info("Fetch finished",
		slog.String("download_id", job.DownloadID),
		slog.String("artifact", artifact),
	)

	return artifact, nil
}

func (f *Fetcher) buildArgs(proxy, outputTemplate, sourceURL string) []string {
	args := []string{
		"--proxy", proxy,
		"--no-check-certificate",
		"--no-continue",
		"--socket-timeout", strconv.Itoa(int(f.config.SocketTimeout.Seconds())),
		"--retries", strconv.Itoa(f.config.Retries),
		"--fragment-retries", strconv.Itoa(f.config.FragmentRetries),
		"--concurrent-fragments", strconv.Itoa(f.config.ConcurrentFragments),
	}

	if f.config.DownloaderArgs != "" {
		args = append(args,
			"--downloader", "aria2c",
			"--downloader-args", "aria2c:"+f.config.DownloaderArgs,
		)
	}

	args = append(args,
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--no-warnings",
		"-o", outputTemplate,
		sourceURL,
	)

	return args
}

// findArtifact locates the audio file the fetch produced for base. A clean
// exit with no matching file is still a fetch failure.
func findArtifact(dir, base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to scan temp dir: %w", err)
	}

	for _, match := range matches {
		if audioExtensions[strings.ToLower(filepath.Ext(match))] {
			return match, nil
		}
	}

	return "", domain.ErrNoArtifact
}
