package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// AnswerSet maps a field key to the submitted value. Client facing answer
// sets are keyed by label; stored answer sets are keyed by field id.
type AnswerSet map[string]string

// DecodeAnswers parses a JSON object of answers. Numbers and booleans are
// kept as their JSON text, nulls are treated as unanswered.
func DecodeAnswers(data string) (AnswerSet, error) {
	out := AnswerSet{}
	if strings.TrimSpace(data) == "" {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			continue
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, err
			}
			out[k] = s
		default:
			out[k] = string(v)
		}
	}
	return out, nil
}

// Encode returns the JSON form of a.
func (a AnswerSet) Encode() (string, error) {
	if a == nil {
		a = AnswerSet{}
	}
	data, err := json.Marshal(a)
	return string(data), err
}

func (a AnswerSet) clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Rekey converts a stored answer set to id keys. Keys that already name a
// field are kept; label keys are moved to the id of the field carrying that
// label, active fields first. Keys matching nothing stay as they are so that
// no stored value is ever lost.
func Rekey(s Schema, stored AnswerSet) AnswerSet {
	out := AnswerSet{}
	ids := map[string]bool{}
	for _, f := range s {
		ids[string(f.ID)] = true
	}

	var labelKeys []string
	for k, v := range stored {
		if ids[k] {
			out[k] = v
		} else {
			labelKeys = append(labelKeys, k)
		}
	}

	for _, k := range labelKeys {
		id, ok := s.idForLabel(k)
		if !ok {
			out[k] = stored[k]
			continue
		}
		if _, taken := out[string(id)]; taken {
			out[k] = stored[k]
			continue
		}
		out[string(id)] = stored[k]
	}
	return out
}

func (s Schema) idForLabel(label string) (FieldID, bool) {
	for _, f := range s {
		if f.IsActive && f.Label == label {
			return f.ID, true
		}
	}
	for _, f := range s {
		if f.Label == label {
			return f.ID, true
		}
	}
	return "", false
}

// Labeled projects a stored answer set onto labels for display. A label
// carried by an active field belongs to that field alone, answered or not;
// inactive fields only show under labels no active field uses. Keys that do
// not name a field are passed through.
func Labeled(s Schema, stored AnswerSet) AnswerSet {
	byID := Rekey(s, stored)
	out := AnswerSet{}
	used := map[string]bool{}
	activeLabels := map[string]bool{}
	for _, f := range s.Active() {
		activeLabels[f.Label] = true
	}

	for _, active := range []bool{true, false} {
		for _, f := range s {
			if f.IsActive != active {
				continue
			}
			used[string(f.ID)] = true
			if !active && activeLabels[f.Label] {
				continue
			}
			v, ok := byID[string(f.ID)]
			if !ok {
				continue
			}
			if _, taken := out[f.Label]; taken {
				continue
			}
			out[f.Label] = v
		}
	}
	for k, v := range byID {
		if used[k] {
			continue
		}
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// PrepareSubmission turns label-keyed answers from the submission form into
// the stored, id-keyed answer set. Only visible active fields that were
// answered are kept; hidden fields are absent rather than empty. Date values
// are converted to storage form.
func PrepareSubmission(s Schema, answers AnswerSet) (AnswerSet, error) {
	if err := CheckRenderable(s); err != nil {
		return nil, err
	}

	var result *multierror.Error
	out := AnswerSet{}
	for _, f := range VisibleFields(s, answers) {
		v, ok := answers[f.Label]
		if !ok || strings.TrimSpace(v) == "" {
			if f.Required {
				result = multierror.Append(result, invalid(f, "is required"))
				continue
			}
			if !ok {
				continue
			}
		}
		if err := checkValue(f, v); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out[string(f.ID)] = f.StorageValue(v)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyEdit merges label-keyed edits into a stored answer set. Only active
// fields can be edited; answers of inactive or removed fields are preserved.
func ApplyEdit(s Schema, stored AnswerSet, edits AnswerSet) (AnswerSet, error) {
	out := Rekey(s, stored)

	var result *multierror.Error
	for _, f := range s.Active() {
		v, ok := edits[f.Label]
		if !ok {
			continue
		}
		if err := checkValue(f, v); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out[string(f.ID)] = f.StorageValue(v)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkValue(f Field, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	switch f.Type {
	case Number:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return invalid(f, "%q is not a number", v)
		}
	case Select:
		for _, c := range f.Choices() {
			if c == v {
				return nil
			}
		}
		return invalid(f, "%q is not one of the options", v)
	}
	return nil
}
