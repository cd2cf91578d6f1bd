package schema

// IsVisible reports whether f should be shown given the answers collected so
// far, keyed by label. A field without a condition is always visible;
// otherwise the answer to the condition field must be present and equal the
// condition value exactly. The condition is looked up by label, so f should
// come from a Linked schema: a reference by id alone is never satisfied.
func IsVisible(f Field, answers AnswerSet) bool {
	if !f.HasCondition() {
		return true
	}
	if f.ConditionField == "" {
		return false
	}
	return matches(answers, f.ConditionField, f.ConditionValue)
}

func matches(answers AnswerSet, label, value string) bool {
	v, ok := answers[label]
	return ok && v == value
}

// VisibleFields returns the active fields of s that are visible for the given
// label-keyed answers, in schema order.
//
// Fields are walked once in dependency order. A field counts as answered for
// its dependents only when it is itself visible, so a stale answer left on a
// hidden field does not reveal anything further down the chain.
func VisibleFields(s Schema, answers AnswerSet) Schema {
	visible := s.visibility(answers)
	out := Schema{}
	for i, f := range s {
		if visible[i] {
			out = append(out, f)
		}
	}
	return out
}

func (s Schema) visibility(answers AnswerSet) []bool {
	visible := make([]bool, len(s))
	order, _ := s.dependencyOrder()
	for _, i := range order {
		f := s[i]
		if !f.IsActive {
			continue
		}
		if !f.HasCondition() {
			visible[i] = true
			continue
		}
		t := s.target(i)
		if t < 0 {
			// dangling reference: nothing visible can ever answer it
			continue
		}
		visible[i] = visible[t] && matches(answers, s[t].Label, f.ConditionValue)
	}
	return visible
}
