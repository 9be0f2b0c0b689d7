package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"holdingsflow/models"
)

var periodPattern = regexp.MustCompile(`^(\d{4})-QTR([1-4])\.`)

// PeriodFromFilename extracts the period from a YYYY-QTRn.<ext> filename.
func PeriodFromFilename(name string) (models.Period, bool) {
	m := periodPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return models.Period{}, false
	}
	year, _ := strconv.Atoi(m[1])
	quarter, _ := strconv.Atoi(m[2])
	return models.Period{Year: year, Quarter: quarter}, true
}

// IndexFile is a discovered quarterly index file.
type IndexFile struct {
	Path   string
	Period models.Period
}

// DiscoverIndexFiles lists files in dir ending in ext whose names carry a
// period, ordered oldest first. Other files are skipped.
func DiscoverIndexFiles(dir, ext string) ([]IndexFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []IndexFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		p, ok := PeriodFromFilename(entry.Name())
		if !ok {
			continue
		}
		files = append(files, IndexFile{Path: filepath.Join(dir, entry.Name()), Period: p})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Period.Before(files[j].Period)
	})
	return files, nil
}

// LatestIndexFile returns the index file with the greatest period.
func LatestIndexFile(dir, ext string) (IndexFile, bool, error) {
	files, err := DiscoverIndexFiles(dir, ext)
	if err != nil || len(files) == 0 {
		return IndexFile{}, false, err
	}
	return files[len(files)-1], true, nil
}
