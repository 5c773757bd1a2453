package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nightlyone/lockfile"
	"go.uber.org/multierr"
)

// DefaultPath is where the consumer expects the value.
const DefaultPath = "/dev/shm/max.temp"

// File writes each Value to a path by renaming a fully written temp file over it.
type File struct {
	path string
	perm os.FileMode
	lock *lockfile.Lockfile
}

// FileOption configures a File.
type FileOption func(*File) error

// WithPerm sets the mode of the published file. The default is 0644.
func WithPerm(perm os.FileMode) FileOption {
	return func(f *File) error {
		f.perm = perm
		return nil
	}
}

// WithLock takes a pid lock at "<path>.lock" so only one process publishes to path.
func WithLock() FileOption {
	return func(f *File) error {
		lock, err := lockfile.New(f.path + ".lock")
		if err != nil {
			return fmt.Errorf("lock file: %w", err)
		}
		if err := lock.TryLock(); err != nil {
			return fmt.Errorf("lock %s: %w", string(lock), err)
		}
		f.lock = &lock
		return nil
	}
}

// NewFile returns a File publishing to path.
func NewFile(path string, opts ...FileOption) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("output path: %w", err)
	}

	f := &File{path: abs, perm: 0o644}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, multierr.Append(err, f.Close())
		}
	}
	return f, nil
}

// Path returns the absolute output path.
func (f *File) Path() string {
	return f.path
}

// Publish writes v to a temp file next to the output and renames it into place.
func (f *File) Publish(_ context.Context, v Value) error {
	dir, base := filepath.Split(f.path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(v.Encode())
	err = multierr.Combine(err, tmp.Chmod(f.perm), tmp.Close())
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.Rename(name, f.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close releases the lock, if one was taken. The published file is left in place.
func (f *File) Close() error {
	if f.lock == nil {
		return nil
	}
	err := f.lock.Unlock()
	f.lock = nil
	return err
}
