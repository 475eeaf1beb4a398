package pipeline

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/slidesmith/slidesmith/internal/jobs"
)

// Extract pulls text out of each input image through the vision backend
// using bounded errgroup concurrency. Images are processed independently;
// results keep input order so downstream text assembly reads top to bottom.
func Extract(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		metadata, err := decode[[]ImageMetadata](snapshot.Data, KeyImageMetadata)
		if err != nil {
			return nil, err
		}

		extracted := make([]ExtractedText, len(metadata))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workerCount(len(metadata)))

		for i, meta := range metadata {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				data, err := fetchImage(gctx, rt.Storage, meta.Key)
				if err != nil {
					return err
				}

				result, err := extractFromImage(gctx, rt.Primary, data, meta.Format)
				if err != nil {
					return err
				}

				extracted[i] = *result
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		rt.Logger.InfoContext(
			ctx, "extract complete",
			"job_id", snapshot.ID, "images", len(extracted),
		)

		encoded, err := encode(extracted)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Progress: 30,
			Data:     map[string]any{KeyExtractedText: encoded},
		}, nil
	}
}

func workerCount(imageCount int) int {
	return max(min(runtime.NumCPU(), imageCount), 1)
}

// combineExtractedText joins the raw text of every image in order.
func combineExtractedText(extracted []ExtractedText) string {
	parts := make([]string, 0, len(extracted))
	for _, e := range extracted {
		if e.RawText != "" {
			parts = append(parts, e.RawText)
		}
	}
	return strings.Join(parts, "\n\n")
}
