package batch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"commentreview/internal/domain"
	"commentreview/internal/logger"
	"commentreview/internal/metrics"
	"commentreview/internal/sheet"

	"golang.org/x/sync/errgroup"
)

// RowAnnotator annotates a single comment. review.RowProcessor implements it.
type RowAnnotator interface {
	Process(ctx context.Context, comment string) (domain.Annotation, error)
}

// RowObserver receives per-row outcomes.
type RowObserver interface {
	ObserveRow(status string, d time.Duration)
}

// Orchestrator fans rows out over a bounded worker pool and reassembles the
// results in input order.
type Orchestrator struct {
	Rows       RowAnnotator
	MaxWorkers int
	Log        *logger.Logger
	Metrics    RowObserver

	// Now stamps output names; time.Now when nil.
	Now func() time.Time
}

// Result describes one ProcessTable run.
type Result struct {
	Rows       int
	FailedRows int
	OutputPath string
}

// ProcessTable annotates every row of the input table and writes the
// annotated copy to a timestamped variant of outputPath. The input file is
// never modified.
func (o *Orchestrator) ProcessTable(ctx context.Context, inputPath, outputPath, textColumn string) (Result, error) {
	table, err := sheet.Read(inputPath)
	if err != nil {
		return Result{}, err
	}
	comments, ok := table.Column(textColumn)
	if !ok {
		return Result{}, fmt.Errorf("%w: missing required text column: %s", domain.ErrConfig, textColumn)
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	if target := StampedPath(outputPath, now()); !sheet.Supported(target) {
		return Result{}, fmt.Errorf("%w: unsupported output file type: %s", domain.ErrConfig, target)
	}

	log := o.log().With("input", inputPath)
	log.Info("processing comments", "rows", len(comments), "workers", o.workers())

	anns, failed := o.Annotate(ctx, comments)
	if err := MergeAnnotations(table, anns); err != nil {
		return Result{}, err
	}

	stamped, err := ReserveOutput(outputPath, now())
	if err != nil {
		return Result{}, err
	}
	if err := sheet.Write(stamped, table); err != nil {
		if rmErr := os.Remove(stamped); rmErr != nil {
			log.Warn("failed to remove reserved output", "output", stamped, "error", rmErr)
		}
		return Result{}, err
	}
	log.Info("wrote annotated table", "output", stamped, "rows", len(comments), "failed_rows", failed)
	return Result{Rows: len(comments), FailedRows: failed, OutputPath: stamped}, nil
}

// Annotate processes comments concurrently. The result slice is indexed
// like comments; a row that errors or panics gets the fallback annotation
// and is counted in failed.
func (o *Orchestrator) Annotate(ctx context.Context, comments []string) (anns []domain.Annotation, failed int) {
	anns = make([]domain.Annotation, len(comments))
	failedRows := make([]bool, len(comments))

	var g errgroup.Group
	g.SetLimit(o.workers())
	for i, comment := range comments {
		i, comment := i, comment
		g.Go(func() error {
			start := time.Now()
			ann, err := o.processRow(ctx, comment)
			status := metrics.RowOK
			if err != nil {
				o.log().Error("row failed, using fallback annotation", "row", i, "error", err)
				ann = domain.FallbackAnnotation()
				failedRows[i] = true
				status = metrics.RowFallback
			}
			anns[i] = ann
			if o.Metrics != nil {
				o.Metrics.ObserveRow(status, time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failedRows {
		if f {
			failed++
		}
	}
	return anns, failed
}

func (o *Orchestrator) processRow(ctx context.Context, comment string) (ann domain.Annotation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return domain.Annotation{}, err
	}
	return o.Rows.Process(ctx, comment)
}

func (o *Orchestrator) workers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return runtime.NumCPU()
}

func (o *Orchestrator) log() *logger.Logger {
	if o.Log == nil {
		return logger.Nop()
	}
	return o.Log
}
