package gradle

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("// build script\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverDescriptors(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{
		"settings.gradle",
		"build.gradle",
		"app/build.gradle.kts",
		"lib/build.gradle",
		"README.md",
		"src/main/java/App.java",
		".github/workflows/ci.gradle",  // hidden dir, skipped
		"build/tmp/generated.gradle",   // build output, skipped
		"app/build.gradle.kts.bak",     // wrong suffix
	} {
		writeFile(t, dir, rel)
	}

	got, err := DiscoverDescriptors(dir)
	if err != nil {
		t.Fatalf("DiscoverDescriptors() error = %v", err)
	}

	want := []string{
		"app/build.gradle.kts",
		"build.gradle",
		"lib/build.gradle",
		"settings.gradle",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverDescriptors() = %v, want %v", got, want)
	}
}

func TestDiscoverDescriptors_Empty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pom.xml")

	got, err := DiscoverDescriptors(dir)
	if err != nil {
		t.Fatalf("DiscoverDescriptors() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("DiscoverDescriptors() = %v, want empty", got)
	}
}
