package gradle

import (
	"strings"

	"github.com/depscout/depscout/pkg/errors"
)

// Tree line anatomy, e.g.:
//
//	+--- org.apache.httpcomponents:httpclient:4.5.13
//	|    \--- commons-codec:commons-codec:1.11 -> 1.15
//	\--- com.acme:widget:1.0 (*)
//
// Each nesting level contributes one five-byte indent unit ("|    " or
// spaces) before the branch marker ("+--- " or "\--- ").
const unitWidth = 5

const (
	branchMid  = `+--- `
	branchLast = `\--- `
	indentPipe = `|    `
	indentGap  = `     `
)

// ParseTree converts raw `gradle dependencies` output into a structured
// forest for one configuration. Non-tree lines (headers, blank lines,
// summary footers) are discarded. It fails with a MALFORMED_TREE error when
// a tree line's indentation skips a level or its coordinate cannot be
// tokenized.
func ParseTree(descriptor, configuration, output string) (*ConfigurationTree, error) {
	tree := &ConfigurationTree{
		Configuration: configuration,
		Descriptor:    descriptor,
	}

	// stack[i] is the currently open ancestor at depth i.
	var stack []*DependencyNode

	// Back-references are keyed by coordinate alone: within one
	// configuration report Gradle resolves a coordinate to a single subtree,
	// so every "(*)" line elides the same expansion regardless of where its
	// ancestry first printed it.
	firstSeen := make(map[Coordinate]*DependencyNode)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		depth, payload, ok := classifyLine(line)
		if !ok {
			continue
		}
		if depth > len(stack) {
			return nil, errors.New(errors.ErrCodeMalformedTree,
				"indentation skips a level at depth %d: %q", depth, line)
		}

		node, repeated, err := parseNode(payload)
		if err != nil {
			return nil, err
		}
		node.Raw = strings.TrimSpace(line)

		if repeated {
			node.Repeated = firstSeen[node.Coordinate]
		} else if firstSeen[node.Coordinate] == nil {
			firstSeen[node.Coordinate] = node
		}

		if depth == 0 {
			tree.Roots = append(tree.Roots, node)
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack[:depth], node)
	}

	return tree, nil
}

// classifyLine splits a line into its nesting depth and node payload.
// Returns ok=false for anything that is not a tree line.
func classifyLine(line string) (depth int, payload string, ok bool) {
	for {
		if strings.HasPrefix(line, branchMid) || strings.HasPrefix(line, branchLast) {
			return depth, line[unitWidth:], true
		}
		if strings.HasPrefix(line, indentPipe) || strings.HasPrefix(line, indentGap) {
			line = line[unitWidth:]
			depth++
			continue
		}
		return 0, "", false
	}
}

// parseNode tokenizes a tree line payload into a DependencyNode. The payload
// carries a coordinate in one of these shapes:
//
//	group:artifact:version
//	group:artifact:declared -> resolved
//	group:artifact -> resolved
//	project :name
//
// plus optional trailing markers: "(*)" for an elided repeated subtree,
// "(c)" for constraints and "(n)" for unresolvable entries.
func parseNode(payload string) (node *DependencyNode, repeated bool, err error) {
	payload = strings.TrimSpace(payload)

	for {
		switch {
		case strings.HasSuffix(payload, "(*)"):
			repeated = true
			payload = strings.TrimSpace(strings.TrimSuffix(payload, "(*)"))
			continue
		case strings.HasSuffix(payload, "(c)"):
			payload = strings.TrimSpace(strings.TrimSuffix(payload, "(c)"))
			continue
		case strings.HasSuffix(payload, "(n)"):
			payload = strings.TrimSpace(strings.TrimSuffix(payload, "(n)"))
			continue
		}
		break
	}

	// Included-build and subproject entries have no coordinate or version.
	if name, ok := strings.CutPrefix(payload, "project "); ok {
		return &DependencyNode{
			Coordinate: Coordinate{Group: "project", Artifact: strings.TrimSpace(name)},
		}, repeated, nil
	}

	declaredPart, resolved, conflicted := strings.Cut(payload, " -> ")

	parts := strings.Split(declaredPart, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var coord Coordinate
	var declared string
	switch {
	case len(parts) == 3 && parts[0] != "" && parts[1] != "":
		coord = Coordinate{Group: parts[0], Artifact: parts[1]}
		declared = parts[2]
	case len(parts) == 2 && conflicted && parts[0] != "" && parts[1] != "":
		// Version supplied entirely by dependency management; only the
		// resolved side is printed.
		coord = Coordinate{Group: parts[0], Artifact: parts[1]}
	default:
		return nil, false, errors.New(errors.ErrCodeMalformedTree,
			"cannot tokenize coordinate: %q", payload)
	}

	node = &DependencyNode{
		Coordinate:      coord,
		DeclaredVersion: declared,
	}
	if conflicted {
		node.ConflictWinner = true
		node.ResolvedVersion = strings.TrimSpace(resolved)
	} else {
		node.ResolvedVersion = declared
	}
	return node, repeated, nil
}
