package schema

// FieldPatch lists the attributes to change on a field. Nil members are left
// untouched. The id is not patchable.
type FieldPatch struct {
	Label            *string    `json:"label,omitempty"`
	Type             *FieldType `json:"type,omitempty"`
	Required         *bool      `json:"required,omitempty"`
	Options          *string    `json:"options,omitempty"`
	ConditionField   *string    `json:"conditionField,omitempty"`
	ConditionFieldID *FieldID   `json:"conditionFieldId,omitempty"`
	ConditionValue   *string    `json:"conditionValue,omitempty"`
	IsActive         *bool      `json:"isActive,omitempty"`
}

// AddField appends a new text field with default attributes and returns the
// new schema together with the added field.
func AddField(s Schema) (Schema, Field) {
	f := Field{
		ID:       NewFieldID(),
		Label:    DefaultLabel,
		Type:     Text,
		IsActive: true,
	}
	out := append(s.clone(), f)
	return out, f
}

// UpdateField merges patch into the field identified by id. An unknown id
// leaves the schema unchanged. A patch that would give an active field the
// label of another active field is rejected.
func UpdateField(s Schema, id FieldID, patch FieldPatch) (Schema, error) {
	i := s.Index(id)
	if i < 0 {
		return s, nil
	}

	out := s.clone()
	old := out[i]
	f := old

	if patch.Label != nil {
		f.Label = *patch.Label
	}
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.Options != nil {
		f.Options = *patch.Options
	}
	if patch.ConditionValue != nil {
		f.ConditionValue = *patch.ConditionValue
	}
	if patch.IsActive != nil {
		f.IsActive = *patch.IsActive
	}

	switch {
	case patch.ConditionFieldID != nil:
		f.ConditionFieldID = *patch.ConditionFieldID
		f.ConditionField = ""
		f.numericCond = false
		if target, ok := out.Find(f.ConditionFieldID); ok {
			f.dependOn(target)
		}
	case patch.ConditionField != nil:
		// a label reference replaces any previous id reference
		f.ConditionField = *patch.ConditionField
		f.ConditionFieldID = ""
		f.numericCond = false
		if t := out.predecessorByLabel(i, f.ConditionField); t >= 0 {
			f.dependOn(out[t])
		}
	}

	if f.IsActive && (f.Label != old.Label || !old.IsActive) {
		for j, other := range out {
			if j != i && other.IsActive && other.Label == f.Label {
				return s, invalid(f, "label is already used by another active field")
			}
		}
	}

	out[i] = f

	if f.Label != old.Label {
		for j := range out {
			dep := &out[j]
			if j == i {
				continue
			}
			legacy := dep.ConditionFieldID == "" && old.Label != "" && j > i && dep.ConditionField == old.Label
			if dep.ConditionFieldID == id || legacy {
				dep.dependOn(f)
			}
		}
	}
	return out, nil
}

// RemoveField excises the field identified by id. Conditions of other fields
// that pointed at it are left as they are.
func RemoveField(s Schema, id FieldID) Schema {
	out := make(Schema, 0, len(s))
	for _, f := range s {
		if f.ID != id {
			out = append(out, f.clone())
		}
	}
	return out
}

// ToggleActive flips the active flag of the field identified by id.
func ToggleActive(s Schema, id FieldID) Schema {
	out := s.clone()
	if i := out.Index(id); i >= 0 {
		out[i].IsActive = !out[i].IsActive
	}
	return out
}

// ConditionCandidates returns the fields the field identified by id may
// depend on: the active fields that precede it.
func ConditionCandidates(s Schema, id FieldID) Schema {
	out := Schema{}
	i := s.Index(id)
	if i < 0 {
		return out
	}
	for _, f := range s[:i] {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// predecessorByLabel returns the index of the nearest field before i that
// carries label, or -1.
func (s Schema) predecessorByLabel(i int, label string) int {
	if label == "" {
		return -1
	}
	if i > len(s) {
		i = len(s)
	}
	for j := i - 1; j >= 0; j-- {
		if s[j].Label == label {
			return j
		}
	}
	return -1
}
