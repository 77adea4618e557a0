package director

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StoryboardName is the file name used inside every job directory.
const StoryboardName = "storyboard.yaml"

// FindLatestStoryboard ищет самый свежий storyboard.yaml. Директория
// обходится рекурсивно, файл возвращается как есть.
func FindLatestStoryboard(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return path, nil
	}

	var found []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), StoryboardName) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no storyboard files found in %s", path)
	}

	// Сортируем по времени изменения (новые первыми)
	sort.Slice(found, func(i, j int) bool {
		infoI, _ := os.Stat(found[i])
		infoJ, _ := os.Stat(found[j])
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return found[0], nil
}
