package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ArtifactInfo summarizes a cached Parquet file from its footer.
type ArtifactInfo struct {
	Path     string
	Size     int64
	ModTime  time.Time
	RowCount int64
	Columns  []string
}

func Inspect(path string) (ArtifactInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("stat artifact: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("read parquet footer %q: %w", path, err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, field.Name())
	}
	return ArtifactInfo{
		Path:     path,
		Size:     stat.Size(),
		ModTime:  stat.ModTime(),
		RowCount: pf.NumRows(),
		Columns:  columns,
	}, nil
}

// List returns every artifact in the cache directory, newest first. A missing
// directory is an empty cache.
func (r *Resolver) List() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir %q: %w", r.Dir, err)
	}

	artifacts := make([]ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ArtifactExt {
			continue
		}
		path := filepath.Join(r.Dir, name)
		info, err := Inspect(path)
		if err != nil {
			// Keep unreadable artifacts visible with whatever the filesystem knows.
			stat, statErr := entry.Info()
			if statErr != nil {
				return nil, fmt.Errorf("stat %q: %w", path, statErr)
			}
			info = ArtifactInfo{Path: path, Size: stat.Size(), ModTime: stat.ModTime(), RowCount: -1}
		}
		artifacts = append(artifacts, info)
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].ModTime.Equal(artifacts[j].ModTime) {
			return artifacts[i].Path < artifacts[j].Path
		}
		return artifacts[i].ModTime.After(artifacts[j].ModTime)
	})
	return artifacts, nil
}
