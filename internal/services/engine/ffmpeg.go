package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg runs the ffmpeg binary as the transcoding runtime.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

func (f *FFmpeg) Load(ctx context.Context) error {
	ffmpegPath, err := exec.LookPath(f.ffmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffprobePath, err := exec.LookPath(f.ffprobePath)
	if err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg -version: %w", err)
	}
	f.ffmpegPath, f.ffprobePath = ffmpegPath, ffprobePath
	version, _, _ := strings.Cut(string(out), "\n")
	logger.Debugf("using %s", strings.TrimSpace(version))
	return nil
}

func (f *FFmpeg) Exec(ctx context.Context, dir string, args []string, onProgress ProgressFunc) error {
	var duration float64
	if input := inputOf(args); input != "" {
		d, err := f.probeDuration(ctx, filepath.Join(dir, input))
		if err != nil {
			logger.Warnf("could not probe duration of %s, progress will be coarse: %v", input, err)
		}
		duration = d
	}

	full := append([]string{"-hide_banner", "-nostdin", "-y", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, f.ffmpegPath, full...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if progress, ok := parseProgressLine(scanner.Text(), duration); ok {
			onProgress(progress)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line := lastLine(stderr.String()); line != "" {
			return fmt.Errorf("ffmpeg failed: %s: %w", line, err)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("failed while reading ffmpeg output: %w", scanErr)
	}
	return nil
}

func (f *FFmpeg) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx,
		f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	val := strings.TrimSpace(string(out))
	if val == "" || val == "N/A" {
		return 0, errors.New("empty duration response")
	}
	dur, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration from ffprobe: %w", err)
	}
	return dur, nil
}

// parseProgressLine turns one "-progress" key=value line into a fraction of duration (seconds).
func parseProgressLine(line string, duration float64) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "progress":
		return 1, value == "end"
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		if duration <= 0 {
			return 0, false
		}
		us, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		ratio := us / 1_000_000 / duration
		return min(max(ratio, 0), 1), true
	}
	return 0, false
}

func inputOf(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			return args[i+1]
		}
	}
	return ""
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
