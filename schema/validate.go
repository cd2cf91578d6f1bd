package schema

import (
	"github.com/hashicorp/go-multierror"
)

// Link resolves condition references both ways: label-only references get
// the id of the nearest preceding field with that label, and id references
// get the current label of their target. Unresolvable references are left
// for Validate to report.
func Link(s Schema) Schema {
	out := s.clone()
	for i := range out {
		f := &out[i]
		switch {
		case f.ConditionFieldID != "":
			if t, ok := out.Find(f.ConditionFieldID); ok {
				f.dependOn(t)
			}
		case f.ConditionField != "":
			if t := out.predecessorByLabel(i, f.ConditionField); t >= 0 {
				f.dependOn(out[t])
			}
		}
	}
	return out
}

// Validate checks the structural integrity of a schema before it is saved.
// All problems are reported, each as a *ValidationError.
func Validate(s Schema) error {
	var result *multierror.Error

	seen := map[FieldID]bool{}
	for _, f := range s {
		switch {
		case f.ID == "":
			result = multierror.Append(result, invalid(f, "id is missing"))
		case seen[f.ID]:
			result = multierror.Append(result, invalid(f, "id %s is used more than once", f.ID))
		}
		seen[f.ID] = true

		if !f.Type.Valid() {
			result = multierror.Append(result, invalid(f, "unknown type %q", f.Type))
		}
	}

	for i, f := range s {
		if !f.HasCondition() {
			continue
		}
		t := s.target(i)
		switch {
		case t < 0:
			result = multierror.Append(result, invalid(f, "condition refers to a field that does not exist"))
		case t >= i:
			result = multierror.Append(result, invalid(f, "condition must refer to an earlier field"))
		case f.IsActive && !s[t].IsActive:
			result = multierror.Append(result, invalid(f, "condition refers to inactive field %q", s[t].Label))
		}
	}

	if _, cyclic := s.dependencyOrder(); len(cyclic) > 0 {
		for _, i := range cyclic {
			result = multierror.Append(result, invalid(s[i], "condition is part of a cycle"))
		}
	}

	return result.ErrorOrNil()
}

// CheckRenderable checks what a schema needs before it can be filled in:
// active fields have distinct, non-empty labels and active select fields
// offer at least one option.
func CheckRenderable(s Schema) error {
	var result *multierror.Error

	labels := map[string]bool{}
	for _, f := range s.Active() {
		switch {
		case f.Label == "":
			result = multierror.Append(result, invalid(f, "label is empty"))
		case labels[f.Label]:
			result = multierror.Append(result, invalid(f, "label is used by more than one active field"))
		}
		labels[f.Label] = true

		if f.Type == Select && len(f.Choices()) == 0 {
			result = multierror.Append(result, invalid(f, "select field has no options"))
		}
	}

	return result.ErrorOrNil()
}
