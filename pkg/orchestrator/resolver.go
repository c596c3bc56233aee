package orchestrator

// Flatten walks the container configuration tree and returns the set of
// all reachable module names, deduplicated, in first-seen order.
//
// Nesting depth is unbounded; a name appearing at multiple tree
// positions collapses to one entry. Cross-references declared in detail
// configuration dependency lists are not resolved here; the bundle
// loader resolves those lazily.
func Flatten(roots []*ContainerConfig) []string {
	seen := make(map[string]bool)
	var names []string
	flattenInto(roots, seen, &names)
	return names
}

func flattenInto(nodes []*ContainerConfig, seen map[string]bool, names *[]string) {
	for _, node := range nodes {
		if node == nil || node.Name == "" {
			continue
		}
		if !seen[node.Name] {
			seen[node.Name] = true
			*names = append(*names, node.Name)
		}
		flattenInto(node.MicroFrontEnds, seen, names)
	}
}
