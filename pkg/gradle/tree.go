// Package gradle implements the Gradle-facing half of the analysis pipeline:
// discovering build descriptors in a repository snapshot, invoking the Gradle
// binary to obtain textual dependency trees, parsing those trees into a
// structured forest, and matching a target dependency against the result.
//
// The dependency tree format is an informal, whitespace-sensitive text layout
// with no grammar guarantee across Gradle versions. Parsing is therefore a
// tolerant line classifier: lines that do not look like tree lines are
// discarded, and only structurally impossible input (indentation skipping a
// level, untokenizable coordinates) is rejected as malformed.
package gradle

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Coordinate identifies a dependency by group and artifact, independent of
// version (e.g. "org.apache.httpcomponents:httpclient").
type Coordinate struct {
	Group    string
	Artifact string
}

// String returns the canonical group:artifact form.
func (c Coordinate) String() string {
	return c.Group + ":" + c.Artifact
}

// DependencyNode is one entry of a parsed dependency tree.
//
// When Gradle has already printed a node's subtree earlier in the same tree,
// it elides the repetition and marks the line with "(*)". Such nodes carry a
// Repeated pointer to the first occurrence and own no children of their own,
// which keeps traversal termination trivial.
type DependencyNode struct {
	Coordinate      Coordinate
	DeclaredVersion string
	ResolvedVersion string

	// ConflictWinner is true when the line used the "declared -> resolved"
	// arrow form, i.e. Gradle's conflict resolution replaced the declared
	// version with the resolved one.
	ConflictWinner bool

	Children []*DependencyNode

	// Repeated points to the first node with the same coordinate when this
	// line carried the "(*)" repetition marker. Nil otherwise.
	Repeated *DependencyNode

	// Raw is the original tree line, retained for match context.
	Raw string
}

// ConfigurationTree is the parsed dependency forest for one
// (descriptor, configuration) pair.
type ConfigurationTree struct {
	Configuration string
	Descriptor    string
	Roots         []*DependencyNode
}

// MatchMode selects how the target name is compared against artifact names.
type MatchMode string

// Supported match modes. Both are case-sensitive.
const (
	MatchExact     MatchMode = "exact"
	MatchSubstring MatchMode = "substring"
)

// ValidMatchModes is the set of supported match modes.
var ValidMatchModes = map[MatchMode]bool{
	MatchExact:     true,
	MatchSubstring: true,
}

// Match is one located occurrence of the target dependency.
type Match struct {
	Descriptor       string `json:"descriptor"`
	Configuration    string `json:"configuration"`
	Coordinate       string `json:"coordinate"`
	ResolvedVersion  string `json:"resolved_version"`
	ParentCoordinate string `json:"parent_coordinate,omitempty"`
	ParentVersion    string `json:"parent_version,omitempty"`

	// VersionShift classifies a conflict-resolved match as "upgraded" or
	// "downgraded" relative to its declared version. Empty when the node was
	// not conflicted or when either version does not parse.
	VersionShift string `json:"version_shift,omitempty"`

	// LineContext is the originating tree line for conflict-resolved nodes.
	LineContext string `json:"line_context,omitempty"`
}

// dedupKey identifies a match for per-job deduplication.
type dedupKey struct {
	descriptor    string
	configuration string
	resolved      string
	parent        string
}

// DedupeMatches removes duplicate matches, keyed by (descriptor,
// configuration, resolved version, parent coordinate). First occurrence
// wins, so the deterministic traversal order is preserved.
func DedupeMatches(matches []Match) []Match {
	seen := make(map[dedupKey]bool, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		k := dedupKey{m.Descriptor, m.Configuration, m.ResolvedVersion, m.ParentCoordinate}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// versionShift classifies the declared -> resolved transition. Versions that
// do not parse (properties, snapshots with exotic qualifiers) yield "".
func versionShift(declared, resolved string) string {
	if declared == "" || resolved == "" || declared == resolved {
		return ""
	}
	dv, err := goversion.NewVersion(declared)
	if err != nil {
		return ""
	}
	rv, err := goversion.NewVersion(resolved)
	if err != nil {
		return ""
	}
	switch {
	case rv.GreaterThan(dv):
		return "upgraded"
	case rv.LessThan(dv):
		return "downgraded"
	default:
		return ""
	}
}

// artifactMatches reports whether an artifact name matches the target under
// the given mode. Comparison is case-sensitive in both modes.
func artifactMatches(artifact, target string, mode MatchMode) bool {
	if mode == MatchSubstring {
		return strings.Contains(artifact, target)
	}
	return artifact == target
}
