package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Run is a run directory found under the output dir.
type Run struct {
	Name  string
	Path  string
	Mtime time.Time
}

const day = 24 * time.Hour

// ParseDuration accepts Go durations plus d (days) and w (weeks) suffixes. A
// bare number means days.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}

	mult := day
	num := input
	switch {
	case strings.HasSuffix(input, "w"):
		mult, num = 7*day, strings.TrimSuffix(input, "w")
	case strings.HasSuffix(input, "d"):
		num = strings.TrimSuffix(input, "d")
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	return time.Duration(n * float64(mult)), nil
}

// ScanRuns lists run directories, newest first. Only directories holding a
// run.json count; anything else under the output dir is left alone.
func ScanRuns(baseDir string) ([]Run, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output dir: %w", err)
	}

	var runs []Run
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 || !entry.IsDir() {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, ManifestFile)); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, Run{Name: entry.Name(), Path: path, Mtime: info.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Mtime.After(runs[j].Mtime)
	})
	return runs, nil
}

// ScanCandidates returns the runs last modified before cutoff.
func ScanCandidates(baseDir string, cutoff time.Time) ([]Run, error) {
	runs, err := ScanRuns(baseDir)
	if err != nil {
		return nil, err
	}
	var old []Run
	for _, r := range runs {
		if r.Mtime.Before(cutoff) {
			old = append(old, r)
		}
	}
	return old, nil
}
