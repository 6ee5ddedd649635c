package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pity-fox/cleantools/pkg/log"
)

// ErrClean is returned when some files could not be removed.
var ErrClean = errors.New("clean")

// CleanResult describes what a clean operation did.
type CleanResult struct {
	// Removed is the number of files deleted.
	Removed int
	// Missing is set when the path did not exist.
	Missing bool
	// Dir is set when the path was a directory.
	Dir bool
}

// Cleaner removes files for "cl" lines.
type Cleaner interface {
	CleanPath(ctx context.Context, path string) (CleanResult, error)
}

// FSCleaner cleans paths on the local filesystem.
//
// A file is deleted. For a directory, every file below it is deleted while
// the directory tree itself is kept. Symbolic links are removed, never
// followed. A missing path is not an error.
type FSCleaner struct{}

// CleanPath implements [Cleaner].
func (FSCleaner) CleanPath(ctx context.Context, path string) (CleanResult, error) {
	logger := log.WithContext(ctx).With(slog.String("path", path))

	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.DebugContext(ctx, "path does not exist")

		return CleanResult{Missing: true}, nil
	}
	if err != nil {
		return CleanResult{}, fmt.Errorf("%w: %w", ErrClean, err)
	}

	if !fi.IsDir() {
		if err := os.Remove(path); err != nil {
			return CleanResult{}, fmt.Errorf("%w: %w", ErrClean, err)
		}

		logger.DebugContext(ctx, "deleted file")

		return CleanResult{Removed: 1}, nil
	}

	res := CleanResult{Dir: true}

	var errs []error

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if d != nil && d.IsDir() && p != path {
				return fs.SkipDir
			}

			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			return nil
		}

		if err := os.Remove(p); err != nil {
			errs = append(errs, err)

			return nil
		}

		res.Removed++

		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	logger.DebugContext(ctx, "cleaned directory",
		slog.Int("removed", res.Removed),
		slog.Int("errors", len(errs)),
	)

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrClean, errors.Join(errs...))
	}

	return res, nil
}
