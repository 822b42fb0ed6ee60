package plugin

import (
	"os"
	"path/filepath"
	"strings"
)

func readDir(dir string) ([]loadedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []loadedFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".so") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, loadedFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	return out, nil
}
