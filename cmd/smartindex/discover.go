package main

import (
	"io/fs"
	"path/filepath"
)

// sourceExtensions mirrors pkg/indexer/scanner.go's
// GetLanguageFromExtension switch: the four extensions this index
// understands.
var sourceExtensions = map[string]bool{
	".ts":  true,
	".tsx": true,
	".js":  true,
	".jsx": true,
}

// discoverSourceFiles walks root for TypeScript/JavaScript source files,
// skipping whole directories that exclude matches so a node_modules tree
// is never descended into. Grounded on pkg/indexer/scanner.go's
// WorkspaceScanner.discoverFiles: filepath.WalkDir plus a relative-path
// exclude check, SkipDir on an excluded directory.
func discoverSourceFiles(root string, exclude func(path string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if exclude(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if sourceExtensions[filepath.Ext(path)] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
