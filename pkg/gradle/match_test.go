package gradle

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, descriptor, configuration, out string) *ConfigurationTree {
	t.Helper()
	tree, err := ParseTree(descriptor, configuration, out)
	if err != nil {
		t.Fatalf("ParseTree() error = %v", err)
	}
	return tree
}

func TestFindMatches_RootConflictScenario(t *testing.T) {
	out := "+--- com.acme:widget:1.0 -> 1.2\n" +
		"\\--- com.acme:gadget:2.0"
	tree := mustParse(t, "build.gradle", "compileClasspath", out)

	matches := FindMatches(tree, "widget", MatchExact)
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}

	m := matches[0]
	if m.ResolvedVersion != "1.2" {
		t.Errorf("ResolvedVersion = %q, want 1.2", m.ResolvedVersion)
	}
	if m.ParentCoordinate != "" {
		t.Errorf("ParentCoordinate = %q, want empty (forest root)", m.ParentCoordinate)
	}
	if m.VersionShift != "upgraded" {
		t.Errorf("VersionShift = %q, want upgraded", m.VersionShift)
	}
	if m.LineContext == "" {
		t.Error("conflicted match should carry line context")
	}
}

func TestFindMatches_ParentAttribution(t *testing.T) {
	out := "+--- org.apache.httpcomponents:httpclient:4.5.13\n" +
		"|    \\--- commons-codec:commons-codec:1.11\n" +
		"\\--- commons-codec:commons-codec:1.11"
	tree := mustParse(t, "build.gradle", "compileClasspath", out)

	matches := FindMatches(tree, "commons-codec", MatchExact)
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].ParentCoordinate != "org.apache.httpcomponents:httpclient" {
		t.Errorf("transitive match parent = %q", matches[0].ParentCoordinate)
	}
	if matches[0].ParentVersion != "4.5.13" {
		t.Errorf("transitive match parent version = %q", matches[0].ParentVersion)
	}
	if matches[1].ParentCoordinate != "" {
		t.Errorf("direct match parent = %q, want empty", matches[1].ParentCoordinate)
	}
}

func TestFindMatches_SubstringMode(t *testing.T) {
	out := "+--- com.fasterxml.jackson.core:jackson-databind:2.13.0\n" +
		"\\--- com.fasterxml.jackson.core:jackson-core:2.13.0"
	tree := mustParse(t, "build.gradle", "compileClasspath", out)

	if got := len(FindMatches(tree, "jackson", MatchSubstring)); got != 2 {
		t.Errorf("substring matches = %d, want 2", got)
	}
	if got := len(FindMatches(tree, "jackson", MatchExact)); got != 0 {
		t.Errorf("exact matches = %d, want 0", got)
	}
	// Case-sensitive in both modes.
	if got := len(FindMatches(tree, "Jackson", MatchSubstring)); got != 0 {
		t.Errorf("case-insensitive match leaked through: %d", got)
	}
}

func TestFindMatches_RepeatedSubtreeNotDescended(t *testing.T) {
	out := "+--- com.acme:widget:1.0\n" +
		"|    \\--- com.acme:inner:3.0\n" +
		"\\--- com.acme:widget:1.0 (*)"
	tree := mustParse(t, "build.gradle", "compileClasspath", out)

	// The repeated widget occurrence itself still matches.
	if got := len(FindMatches(tree, "widget", MatchExact)); got != 2 {
		t.Errorf("widget matches = %d, want 2", got)
	}
	// But its elided subtree contributes nothing.
	if got := len(FindMatches(tree, "inner", MatchExact)); got != 1 {
		t.Errorf("inner matches = %d, want 1", got)
	}
}

func TestFindMatches_Deterministic(t *testing.T) {
	tree := mustParse(t, "build.gradle", "compileClasspath", sampleOutput)

	first := FindMatches(tree, "http", MatchSubstring)
	for range 10 {
		if again := FindMatches(tree, "http", MatchSubstring); !reflect.DeepEqual(first, again) {
			t.Fatal("repeated runs produced different match lists")
		}
	}
}

func TestDedupeMatches(t *testing.T) {
	matches := []Match{
		{Descriptor: "build.gradle", Configuration: "compileClasspath", Coordinate: "com.acme:widget", ResolvedVersion: "1.2"},
		{Descriptor: "build.gradle", Configuration: "compileClasspath", Coordinate: "com.acme:widget", ResolvedVersion: "1.2"},
		{Descriptor: "build.gradle", Configuration: "runtimeClasspath", Coordinate: "com.acme:widget", ResolvedVersion: "1.2"},
		{Descriptor: "build.gradle", Configuration: "compileClasspath", Coordinate: "com.acme:widget", ResolvedVersion: "1.2", ParentCoordinate: "com.acme:app"},
	}

	got := DedupeMatches(matches)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// First-seen order preserved.
	if got[0].Configuration != "compileClasspath" || got[1].Configuration != "runtimeClasspath" {
		t.Error("dedupe reordered matches")
	}
}

func TestVersionShift(t *testing.T) {
	tests := []struct {
		declared, resolved, want string
	}{
		{"1.0", "1.2", "upgraded"},
		{"2.0", "1.9", "downgraded"},
		{"1.0", "1.0", ""},
		{"", "1.2", ""},
		{"${httpVersion}", "4.5.13", ""},
	}
	for _, tt := range tests {
		if got := versionShift(tt.declared, tt.resolved); got != tt.want {
			t.Errorf("versionShift(%q, %q) = %q, want %q", tt.declared, tt.resolved, got, tt.want)
		}
	}
}
