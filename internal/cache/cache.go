// Package cache maps delimited text inputs to Parquet artifacts on disk so a
// file is parsed once per modification time.
//
// Artifacts live at <dir>/<stem>_<md5(abspath + mtime)>.parquet. Identity is
// path plus modification time, not content: editing a file produces a new key
// and leaves the old artifact orphaned. Nothing is ever evicted.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/duckllm/duckllm/internal/observability"
	"github.com/duckllm/duckllm/internal/storage"
)

const ArtifactExt = ".parquet"

// ConvertFunc writes the columnar form of src to dst. dst is a scratch path in
// the cache directory; the resolver moves it into place once convert returns.
type ConvertFunc func(ctx context.Context, src, dst string) error

type Resolver struct {
	Dir string
	// Mirror, when set, is consulted on a local miss and receives every newly
	// converted artifact. Mirror failures are logged, never fatal.
	Mirror storage.ObjectStore
	Logger *slog.Logger
}

type Artifact struct {
	Path   string
	Source string
	Hit    bool
	Remote bool
}

func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir}
}

// Key is the identity hash of a file: hex MD5 over the absolute path followed
// by the modification time in Unix nanoseconds.
func Key(absPath string, modTime time.Time) string {
	sum := md5.Sum([]byte(absPath + strconv.FormatInt(modTime.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])
}

func (r *Resolver) Key(absPath string, modTime time.Time) string {
	return Key(absPath, modTime)
}

func (r *Resolver) EnsureDir() error {
	if strings.TrimSpace(r.Dir) == "" {
		return fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %q: %w", r.Dir, err)
	}
	return nil
}

// ResolvePath returns the artifact path for file as it is right now. The
// cache directory is created if needed.
func (r *Resolver) ResolvePath(file string) (string, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path %q: %w", file, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat source %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source %q is a directory", absPath)
	}
	if err := r.EnsureDir(); err != nil {
		return "", err
	}
	return filepath.Join(r.Dir, artifactName(absPath, info.ModTime())), nil
}

func IsCached(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Materialize returns a ready artifact for file, converting it only when
// neither the local cache nor the mirror already holds it.
func (r *Resolver) Materialize(ctx context.Context, file string, convert ConvertFunc) (Artifact, error) {
	if convert == nil {
		return Artifact{}, fmt.Errorf("convert function is required")
	}
	artifactPath, err := r.ResolvePath(file)
	if err != nil {
		return Artifact{}, err
	}
	source, _ := filepath.Abs(file)
	artifact := Artifact{Path: artifactPath, Source: source}
	logger := r.logger().With(slog.String("source", source), slog.String("artifact", artifactPath))

	if IsCached(artifactPath) {
		observability.ObserveCacheLookup(observability.CacheHit)
		logger.DebugContext(ctx, "cache hit")
		artifact.Hit = true
		return artifact, nil
	}

	if r.Mirror != nil {
		pulled, err := r.pull(ctx, artifactPath)
		if err != nil {
			logger.WarnContext(ctx, "cache mirror download failed", slog.Any("error", err))
		}
		if pulled {
			observability.ObserveCacheLookup(observability.CacheRemoteHit)
			logger.DebugContext(ctx, "cache hit from mirror")
			artifact.Hit = true
			artifact.Remote = true
			return artifact, nil
		}
	}

	observability.ObserveCacheLookup(observability.CacheMiss)
	logger.DebugContext(ctx, "cache miss, converting")
	start := time.Now()
	if err := r.convertInto(ctx, source, artifactPath, convert); err != nil {
		return Artifact{}, err
	}
	observability.ObserveCacheConversion(time.Since(start))
	logger.DebugContext(ctx, "cache artifact written", slog.Duration("elapsed", time.Since(start)))

	if r.Mirror != nil {
		if err := r.push(ctx, artifactPath); err != nil {
			logger.WarnContext(ctx, "cache mirror upload failed", slog.Any("error", err))
		}
	}
	return artifact, nil
}

func (r *Resolver) convertInto(ctx context.Context, source, artifactPath string, convert ConvertFunc) error {
	tmpPath, err := scratchPath(r.Dir, filepath.Base(artifactPath))
	if err != nil {
		return err
	}
	if err := convert(ctx, source, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("convert %q: %w", source, err)
	}
	if err := os.Rename(tmpPath, artifactPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}

func (r *Resolver) pull(ctx context.Context, artifactPath string) (bool, error) {
	key, err := storage.BuildCacheObjectKey(filepath.Base(artifactPath))
	if err != nil {
		return false, err
	}
	reader, err := r.Mirror.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = reader.Close() }()

	tmpPath, err := scratchPath(r.Dir, filepath.Base(artifactPath))
	if err != nil {
		return false, err
	}
	if err := writeFile(tmpPath, reader); err != nil {
		_ = os.Remove(tmpPath)
		return false, fmt.Errorf("download %q: %w", key, err)
	}
	if err := os.Rename(tmpPath, artifactPath); err != nil {
		_ = os.Remove(tmpPath)
		return false, fmt.Errorf("move downloaded artifact into place: %w", err)
	}
	return true, nil
}

func (r *Resolver) push(ctx context.Context, artifactPath string) error {
	key, err := storage.BuildCacheObjectKey(filepath.Base(artifactPath))
	if err != nil {
		return err
	}
	file, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	remote, err := r.Mirror.Stat(ctx, key)
	if err == nil && remote.Size == info.Size() {
		return nil
	}
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	if _, err := r.Mirror.Put(ctx, key, file, info.Size(), storage.PutOptions{}); err != nil {
		return err
	}
	return nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func artifactName(absPath string, modTime time.Time) string {
	base := filepath.Base(absPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + Key(absPath, modTime) + ArtifactExt
}

func scratchPath(dir, name string) (string, error) {
	file, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	// Only the unique name is needed; converters create the file themselves.
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("reset scratch file: %w", err)
	}
	return path, nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	return fill(file, reader)
}

type syncWriteCloser interface {
	io.WriteCloser
	Sync() error
}

// fill copies reader into file, syncs it and closes it. The first failure
// wins, and a failed close is reported even after a clean sync.
func fill(file syncWriteCloser, reader io.Reader) (err error) {
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return file.Sync()
}
