package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StampLayout renders month, day, year, 12-hour time and AM/PM: 01302025_0352PM.
const StampLayout = "01022006_0304PM"

const defaultExt = ".xlsx"

const maxStampAttempts = 1000

// StampedPath splices a timestamp before the extension of path. A path
// without an extension gets .xlsx.
func StampedPath(path string, now time.Time) string {
	return stampedWithSuffix(path, now, 1)
}

func stampedWithSuffix(path string, now time.Time, n int) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = defaultExt
	}
	stamp := now.Format(StampLayout)
	if n > 1 {
		stamp = fmt.Sprintf("%s_%d", stamp, n)
	}
	return base + "_" + stamp + ext
}

// ReserveOutput creates an empty file at the stamped path and returns its
// name. When a run in the same minute already holds that name, _2, _3, ...
// is appended so no output is ever overwritten.
func ReserveOutput(path string, now time.Time) (string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	for n := 1; n <= maxStampAttempts; n++ {
		candidate := stampedWithSuffix(path, now, n)
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve output %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return candidate, nil
	}
	return "", fmt.Errorf("reserve output %s: %d names already taken", path, maxStampAttempts)
}
