package utils

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func IsFileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

func GetPathFormat(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func ChangePathFormat(path string, newFormat string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "." + newFormat
	}
	return path[0:len(path)-len(ext)] + "." + newFormat
}

// SanitizeFilename replaces path separators and reserved characters with underscores.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

func FFmpegAvailable(bin string) bool {
	if bin == "" {
		bin = "ffmpeg"
	}
	return exec.Command(bin, "-version").Run() == nil
}
