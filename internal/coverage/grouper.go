package coverage

// GroupLines merges sorted, unique lines into maximal runs of consecutive
// line numbers. It is a single greedy scan: a new group starts whenever the
// next line does not directly follow the current one.
func GroupLines(lines []Line) []Group {
	if len(lines) == 0 {
		return []Group{}
	}

	var (
		groups  []*Group
		current *Group
	)
	for _, line := range lines {
		if current == nil || !current.CanAppend(line) {
			current = NewGroup(line)
			groups = append(groups, current)
			continue
		}
		current.extend(line)
	}

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

// TotalLines sums the lengths of groups.
func TotalLines(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += g.Len()
	}
	return total
}
