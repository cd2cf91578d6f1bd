package schema

// target returns the index of the field that s[i] depends on, or -1 when the
// field has no condition or its reference cannot be resolved. An id reference
// wins over a label reference; a label resolves to the nearest predecessor
// carrying it, then to any field carrying it.
func (s Schema) target(i int) int {
	f := s[i]
	if f.ConditionFieldID != "" {
		return s.Index(f.ConditionFieldID)
	}
	if f.ConditionField == "" {
		return -1
	}
	if t := s.predecessorByLabel(i, f.ConditionField); t >= 0 {
		return t
	}
	for j := i + 1; j < len(s); j++ {
		if s[j].Label == f.ConditionField {
			return j
		}
	}
	return -1
}

// dependencyOrder returns the field indexes of s in a topological order of
// the condition graph, ties broken by schema order. For a schema whose
// conditions only point backwards this is plain schema order. Fields caught
// in a cycle are appended in schema order and reported in cyclic.
func (s Schema) dependencyOrder() (order []int, cyclic []int) {
	n := len(s)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i := range s {
		if t := s.target(i); t >= 0 && t != i {
			indegree[i]++
			dependents[t] = append(dependents[t], i)
		} else if t == i {
			indegree[i]++
		}
	}

	done := make([]bool, n)
	order = make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}

	for i := 0; i < n; i++ {
		if !done[i] {
			cyclic = append(cyclic, i)
			order = append(order, i)
		}
	}
	return order, cyclic
}
