// Package lasd reads aerial LiDAR point-cloud datasets: a single LAS/LAZ
// file or a directory of them. It parses only the public header block of
// each file (point counts, extents and the coordinate system), which is all
// the processing pipeline needs to validate and describe its input.
package lasd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lasfoot/internal/fsutil"
)

// Kind distinguishes a single-file dataset from a directory collection.
type Kind string

const (
	KindFile       Kind = "las-file"
	KindCollection Kind = "las-collection"
)

// FileInfo summarises one LAS file inside a dataset.
type FileInfo struct {
	Path    string
	Version string
	Points  uint64
	Extent  r2.Rect
}

// Info describes a point-cloud dataset. It is immutable for the duration of
// one pipeline run; the pipeline only reads it.
type Info struct {
	Path       string
	Name       string
	Kind       Kind
	CRS        string // WKT coordinate system, empty if none of the files carry one
	FileCount  int
	PointCount uint64
	Extent     r2.Rect
	PerFile    []FileInfo
	Warnings   []string // advisory: files whose headers could not be read
}

// HasSpatialReference reports whether the dataset carries a coordinate system.
func (i *Info) HasSpatialReference() bool { return i.CRS != "" }

// MeanPointsPerFile returns the mean point count across readable files.
func (i *Info) MeanPointsPerFile() float64 {
	if len(i.PerFile) == 0 {
		return 0
	}
	pts := make([]float64, len(i.PerFile))
	for n, f := range i.PerFile {
		pts[n] = float64(f.Points)
	}
	return stat.Mean(pts, nil)
}

// isLASPath reports whether a path has a LAS/LAZ extension.
func isLASPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las", ".laz":
		return true
	}
	return false
}

// DatasetName derives the short dataset name used for workspace naming:
// the base name with any LAS extension stripped.
func DatasetName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if isLASPath(base) {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// Describe resolves a dataset path into an Info. Header-read failures on
// individual files downgrade to warnings so a partially unreadable
// collection still describes; a file that is demonstrably not LAS (bad
// signature, wrong extension) is an error.
func Describe(fsys fsutil.FileSystem, path string) (*Info, error) {
	st, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset %s: %w", path, err)
	}

	info := &Info{
		Path: path,
		Name: DatasetName(path),
	}

	var files []string
	if st.IsDir() {
		info.Kind = KindCollection
		entries, err := fsys.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read dataset directory %s: %w", path, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isLASPath(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("dataset directory %s contains no LAS files: %w", path, ErrNotLAS)
		}
	} else {
		info.Kind = KindFile
		if !isLASPath(path) {
			return nil, fmt.Errorf("dataset %s: %w", path, ErrNotLAS)
		}
		files = []string{path}
	}

	var sawExtent bool
	for _, p := range files {
		h, err := readHeader(fsys, p)
		if err != nil {
			if info.Kind == KindFile {
				return nil, err
			}
			info.Warnings = append(info.Warnings, fmt.Sprintf("unreadable file %s: %v", p, err))
			continue
		}

		ext := r2.RectFromPoints(r2.Point{X: h.MinX, Y: h.MinY}, r2.Point{X: h.MaxX, Y: h.MaxY})
		info.PerFile = append(info.PerFile, FileInfo{
			Path:    p,
			Version: fmt.Sprintf("1.%d", h.VersionMinor),
			Points:  h.PointCount,
			Extent:  ext,
		})
		info.PointCount += h.PointCount
		if sawExtent {
			info.Extent = info.Extent.Union(ext)
		} else {
			info.Extent = ext
			sawExtent = true
		}
		if info.CRS == "" && h.WKT != "" {
			info.CRS = h.WKT
		}
	}
	info.FileCount = len(files)

	if len(info.PerFile) == 0 {
		// Every header failed; collection exists but nothing was readable.
		return nil, fmt.Errorf("dataset %s: no readable LAS headers: %w", path, ErrNotLAS)
	}

	return info, nil
}
