package gradle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// coordinateLiteral matches a group:artifact:version coordinate written out
// in a build script, e.g. the string inside
// implementation 'org.apache.httpcomponents:httpclient:4.5.13'.
var coordinateLiteral = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_.-]*):([A-Za-z0-9_.-]+):([A-Za-z0-9_.+-]+)`)

// ScanDeclarations reads the build descriptors and gradle.properties files
// under root and reports lines that declare the target directly: version
// variables (httpclientVersion = "4.5.13", httpclient=4.5.13) and literal
// group:artifact:version coordinates whose artifact matches the target.
//
// Declaration matches complement the resolved trees: they carry no
// configuration, their context names the file line they came from, and they
// are still available when the Gradle invocation itself cannot run.
// Unreadable files are skipped; only the walk can fail.
func ScanDeclarations(root, target string, mode MatchMode) ([]Match, error) {
	files, err := discoverFiles(root, func(name string) bool {
		return isDescriptor(name) || name == "gradle.properties"
	})
	if err != nil {
		return nil, err
	}

	// Quoted values cover build scripts, bare values cover gradle.properties.
	versionVar := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(target) +
		`(?:version)?\s*=\s*(?:['"]([^'"]+)['"]|([^\s'"]+))`)

	var matches []Match
	for _, rel := range files {
		body, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(body), "\n") {
			context := fmt.Sprintf("Line %d: %s", i+1, strings.TrimSpace(line))

			if m := versionVar.FindStringSubmatch(line); m != nil {
				version := m[1]
				if version == "" {
					version = m[2]
				}
				matches = append(matches, Match{
					Descriptor:      rel,
					Coordinate:      target,
					ResolvedVersion: version,
					LineContext:     context,
				})
			}

			for _, m := range coordinateLiteral.FindAllStringSubmatch(line, -1) {
				if !artifactMatches(m[2], target, mode) {
					continue
				}
				matches = append(matches, Match{
					Descriptor:      rel,
					Coordinate:      m[1] + ":" + m[2],
					ResolvedVersion: m[3],
					LineContext:     context,
				})
			}
		}
	}
	return matches, nil
}
