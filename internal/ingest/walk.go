package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// supportedExtensions is the set of file extensions ingestion scans for.
// Currently just WAV; other codecs are a non-goal.
var supportedExtensions = map[string]bool{".wav": true}

// walkWAVFiles recursively lists every supported audio file under dirs.
func walkWAVFiles(dirs []string) ([]string, error) {
	var out []string
	for _, root := range dirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return out, nil
}
