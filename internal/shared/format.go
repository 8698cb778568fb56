package shared

import (
	"fmt"
	"math"
	"strings"
)

// FormatClock renders seconds as mm:ss. Negative, NaN, and infinite values render as 00:00.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatDuration renders a nominal track length, or --:-- when it is unknown.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	return FormatClock(float64(seconds))
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KiB", "MiB", "GiB"}
	v := float64(n)
	var unit string
	for _, unit = range units {
		v /= 1024
		if v < 1024 {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

// SanitizeFilename replaces characters that are invalid in file names on common platforms.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return "untitled"
	}
	return name
}
