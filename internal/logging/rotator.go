package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FileRotator is an io.Writer over a log file that is rotated once it grows
// past Config.MaxSize megabytes. Backups are numbered logrotate-style:
// vnime.log.1 is the newest, optionally gzipped to vnime.log.1.gz, and at
// most Config.MaxBackups are kept.
type FileRotator struct {
	path     string
	maxBytes int64
	backups  int
	compress bool

	mu   sync.Mutex
	file *os.File
	size int64

	// compressing tracks the background gzip of the newest backup.
	compressing sync.WaitGroup
}

// NewFileRotator opens cfg.FilePath for appending.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("log file path is empty")
	}
	r := &FileRotator{
		path:     cfg.FilePath,
		maxBytes: cfg.MaxSize * 1024 * 1024,
		backups:  max(cfg.MaxBackups, 0),
		compress: cfg.Compress,
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return nil, err
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) backupName(n int) string {
	return r.path + "." + strconv.Itoa(n)
}

// rotate shifts every backup up by one, drops the oldest and starts a new
// file. Called with mu held.
func (r *FileRotator) rotate() error {
	// A gzip still running on .1 would race the renames below.
	r.compressing.Wait()

	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	for n := r.backups; n >= 1; n-- {
		for _, ext := range []string{"", ".gz"} {
			src := r.backupName(n) + ext
			var err error
			if n == r.backups {
				err = os.Remove(src)
			} else {
				err = os.Rename(src, r.backupName(n+1)+ext)
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}

	if r.backups == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	} else if err := os.Rename(r.path, r.backupName(1)); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	if r.compress && r.backups > 0 {
		r.compressing.Add(1)
		go func(src string) {
			defer r.compressing.Done()
			if err := gzipFile(src); err != nil {
				fmt.Fprintf(os.Stderr, "vnime: compress %s: %v\n", src, err)
			}
		}(r.backupName(1))
	}
	return nil
}

// gzipFile replaces src with src.gz.
func gzipFile(src string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dst := src + ".gz"
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(dst)
		}
	}()

	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(src)
	if _, err = io.Copy(zw, in); err != nil {
		out.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Close waits for a pending compression and closes the file.
func (r *FileRotator) Close() error {
	r.compressing.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Sync flushes the current file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Sync()
}

// GetLogFiles returns the current file followed by its backups, newest
// first.
func (r *FileRotator) GetLogFiles() ([]string, error) {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil {
		return nil, err
	}
	type backup struct {
		path string
		n    int
	}
	var found []backup
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(m, r.path+"."), ".gz")
		if n, err := strconv.Atoi(suffix); err == nil {
			found = append(found, backup{m, n})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	files := []string{r.path}
	for _, b := range found {
		files = append(files, b.path)
	}
	return files, nil
}
