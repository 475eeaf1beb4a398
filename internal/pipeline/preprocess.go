package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/pkg/storage"
)

// Preprocess validates the job's input images: every referenced blob must
// exist and decode as a supported raster format. It records per-image
// metadata for downstream stages. An empty image list or an undecodable
// image is unrecoverable for the job.
func Preprocess(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		keys, err := decode[[]string](snapshot.Data, KeyImages)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, faults.New(faults.KindPreprocessing, "job has no input images")
		}

		metadata := make([]ImageMetadata, 0, len(keys))
		for _, key := range keys {
			meta, err := inspectImage(ctx, rt.Storage, key)
			if err != nil {
				return nil, err
			}
			metadata = append(metadata, *meta)
		}

		rt.Logger.InfoContext(ctx, "preprocess complete", "job_id", snapshot.ID, "images", len(metadata))

		encoded, err := encode(metadata)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Progress: 10,
			Data:     map[string]any{KeyImageMetadata: encoded},
		}, nil
	}
}

func inspectImage(ctx context.Context, store storage.System, key string) (*ImageMetadata, error) {
	data, err := fetchImage(ctx, store, key)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, faults.Wrap(faults.KindPreprocessing,
			fmt.Sprintf("decode image %s", key), err)
	}

	return &ImageMetadata{
		Key:    key,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// fetchImage reads a full image blob from storage. Missing blobs are a
// preprocessing failure; transport errors are retryable extraction faults
// since blob storage is an external dependency.
func fetchImage(ctx context.Context, store storage.System, key string) ([]byte, error) {
	reader, err := store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, faults.Newf(faults.KindPreprocessing, "image %s not found in storage", key)
		}
		return nil, faults.Wrap(faults.KindExtraction,
			fmt.Sprintf("download image %s", key), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, faults.Wrap(faults.KindExtraction,
			fmt.Sprintf("read image %s", key), err)
	}

	return data, nil
}
