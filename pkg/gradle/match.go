package gradle

// FindMatches searches a configuration tree for the target dependency and
// returns one Match per occurrence.
//
// The target is compared against the artifact component of each node's
// coordinate under the given mode. Traversal is pre-order with children in
// declared order, so repeated runs over identical input produce matches in
// identical order. Parent attribution uses the immediate traversal ancestor;
// forest roots have none. Nodes carrying a repeated-subtree reference still
// match at their location (the dependency is genuinely present there) but
// are not descended into.
func FindMatches(tree *ConfigurationTree, target string, mode MatchMode) []Match {
	var matches []Match
	for _, root := range tree.Roots {
		matches = visit(tree, root, nil, target, mode, matches)
	}
	return matches
}

func visit(tree *ConfigurationTree, node, parent *DependencyNode, target string, mode MatchMode, matches []Match) []Match {
	if artifactMatches(node.Coordinate.Artifact, target, mode) {
		m := Match{
			Descriptor:      tree.Descriptor,
			Configuration:   tree.Configuration,
			Coordinate:      node.Coordinate.String(),
			ResolvedVersion: node.ResolvedVersion,
		}
		if parent != nil {
			m.ParentCoordinate = parent.Coordinate.String()
			m.ParentVersion = parent.ResolvedVersion
		}
		if node.ConflictWinner {
			m.VersionShift = versionShift(node.DeclaredVersion, node.ResolvedVersion)
			m.LineContext = node.Raw
		}
		matches = append(matches, m)
	}

	if node.Repeated != nil {
		return matches
	}
	for _, child := range node.Children {
		matches = visit(tree, child, node, target, mode, matches)
	}
	return matches
}
