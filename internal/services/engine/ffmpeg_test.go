package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/eric2788/vidpost/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line     string
		duration float64
		want     float64
		ok       bool
	}{
		{"out_time_us=5000000", 10, 0.5, true},
		{"out_time_ms=2500000", 10, 0.25, true},
		{"out_time_us=20000000", 10, 1, true},
		{"out_time_us=-1000", 10, 0, true},
		{"out_time_us=N/A", 10, 0, false},
		{"out_time_us=5000000", 0, 0, false},
		{"progress=continue", 10, 0, false},
		{"progress=end", 0, 1, true},
		{"frame=12", 10, 0, false},
		{"garbage", 10, 0, false},
	}
	for _, tc := range cases {
		got, ok := parseProgressLine(tc.line, tc.duration)
		assert.Equal(t, tc.ok, ok, tc.line)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.line)
		}
	}
}

func TestInputOf(t *testing.T) {
	assert.Equal(t, "a.mov", inputOf([]string{"-y", "-i", "a.mov", "out.mp4"}))
	assert.Equal(t, "", inputOf([]string{"-i"}))
	assert.Equal(t, "", inputOf(nil))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "third", lastLine("first\nsecond\nthird\n\n"))
	assert.Equal(t, "", lastLine(""))
}

func TestFFmpeg_LoadMissingBinary(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-ffmpeg"), "ffprobe")
	assert.Error(t, f.Load(t.Context()))
}

func TestFFmpeg_ExtractAudio(t *testing.T) {
	if !utils.FFmpegAvailable("ffmpeg") {
		t.Skip("ffmpeg not available, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping test")
	}

	src := filepath.Join(t.TempDir(), "src.mp4")
	gen := exec.CommandContext(t.Context(), "ffmpeg", "-hide_banner", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=2",
		"-shortest", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate sample video: %v: %s", err, out)
	}
	input, err := os.ReadFile(src)
	require.NoError(t, err)

	a := NewAdapter(NewFFmpeg("ffmpeg", "ffprobe"), t.TempDir())
	require.NoError(t, a.Load(t.Context()))

	var last float64
	out, err := a.Convert(t.Context(), Request{
		ItemID:     "sample",
		Input:      input,
		InputName:  "src.mp4",
		OutputName: "sample.mp4",
		Args:       AudioExtractionArgs("src.mp4", "sample.mp4", "20k", "libmp3lame"),
	}, func(p float64) {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		last = p
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, 1.0, last)
}
