package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink is the download side effect of an export.
type Sink interface {
	Deliver(ctx context.Context, filename string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, filename string, data []byte) error

func (f SinkFunc) Deliver(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// DirSink saves exports into a directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(_ context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// Path returns where DirSink stores filename.
func (s DirSink) Path(filename string) string {
	return filepath.Join(s.Dir, filepath.Base(filename))
}

// Sinks delivers to every non-nil sink in order and stops at the first error.
func Sinks(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, filename string, data []byte) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Deliver(ctx, filename, data); err != nil {
				return err
			}
		}
		return nil
	})
}
