package schedule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"commentreview/internal/logger"
	"commentreview/internal/sheet"

	"github.com/robfig/cron/v3"
)

// Watcher processes spreadsheets dropped into an inbox directory.
type Watcher struct {
	InboxDir  string
	OutboxDir string

	// Seen reports whether a completed run already consumed the fingerprint.
	Seen func(fingerprint string) (bool, error)

	// Process annotates one file; outputPath is the unstamped target.
	Process func(ctx context.Context, inputPath, outputPath, fingerprint string) error

	Log *logger.Logger
}

// Fingerprint identifies one version of a file by path, size and mtime.
func Fingerprint(path string, info fs.FileInfo) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano())))
	return hex.EncodeToString(sum[:])
}

// Scan processes every supported file in the inbox that has no completed
// run yet. Failures on one file are logged and do not stop the scan.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.InboxDir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	processed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") || !sheet.Supported(name) {
			continue
		}
		path := filepath.Join(w.InboxDir, name)
		info, err := e.Info()
		if err != nil {
			w.log().Warn("stat inbox file failed", "file", name, "error", err)
			continue
		}
		fp := Fingerprint(path, info)
		seen, err := w.Seen(fp)
		if err != nil {
			w.log().Warn("run history lookup failed", "file", name, "error", err)
			continue
		}
		if seen {
			continue
		}
		w.log().Info("processing inbox file", "file", name)
		if err := w.Process(ctx, path, filepath.Join(w.OutboxDir, name), fp); err != nil {
			w.log().Error("inbox file failed", "file", name, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// Run scans once immediately and then on every tick of spec until ctx is
// done. A tick that fires while a scan is still running is skipped.
func (w *Watcher) Run(ctx context.Context, spec string) error {
	cl := cronLogger{w.log()}
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	scan := func() {
		n, err := w.Scan(ctx)
		if err != nil {
			w.log().Error("inbox scan failed", "error", err)
			return
		}
		w.log().Info("inbox scan finished", "processed", n)
	}
	id, err := c.AddFunc(spec, scan)
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", spec, err)
	}
	c.Start()
	w.log().Info("watching inbox", "inbox", w.InboxDir, "schedule", spec)
	c.Entry(id).WrappedJob.Run()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Watcher) log() *logger.Logger {
	if w.Log == nil {
		return logger.Nop()
	}
	return w.Log
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
