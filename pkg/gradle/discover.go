package gradle

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverDescriptors walks a snapshot directory and returns the relative
// paths of all Gradle build descriptors, sorted lexicographically for
// reproducible iteration.
//
// Two descriptor variants are recognized: Groovy DSL scripts (*.gradle) and
// Kotlin DSL scripts (*.gradle.kts). Hidden directories and Gradle build
// output directories are skipped. An empty result is a legitimate outcome,
// not an error; the caller decides how to report it.
func DiscoverDescriptors(root string) ([]string, error) {
	return discoverFiles(root, isDescriptor)
}

// discoverFiles walks root and returns sorted relative slash paths of files
// accepted by keep, skipping hidden directories and build output.
func discoverFiles(root string, keep func(name string) bool) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || name == "build" {
				return filepath.SkipDir
			}
			return nil
		}
		if keep(d.Name()) {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

func isDescriptor(name string) bool {
	return strings.HasSuffix(name, ".gradle") || strings.HasSuffix(name, ".gradle.kts")
}
