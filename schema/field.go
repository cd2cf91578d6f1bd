// Package schema holds the form schema engine: the field list of a form,
// the editing operations over it, the conditional visibility rules and the
// normalization of submitted answers.
package schema

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type FieldType string

const (
	Text   FieldType = "text"
	Number FieldType = "number"
	Date   FieldType = "date"
	Select FieldType = "select"
)

func (t FieldType) Valid() bool {
	switch t {
	case Text, Number, Date, Select:
		return true
	}
	return false
}

// DefaultLabel is the label given to freshly added fields.
const DefaultLabel = "New Field"

// FieldID identifies a field within its form and never changes once assigned.
//
// Schemas written by the first version of the builder used millisecond
// timestamps as JSON numbers. A FieldID always encodes as a JSON string;
// Field remembers which of its ids were read as numbers and writes those
// back unchanged.
type FieldID string

var reJSONNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// NewFieldID returns a fresh, time-ordered identifier.
func NewFieldID() FieldID {
	return FieldID(uuid.Must(uuid.NewV7()).String())
}

func (id FieldID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func isNumberToken(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && (data[0] == '-' || data[0] >= '0' && data[0] <= '9')
}

func (id *FieldID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FieldID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FieldID(n.String())
	return nil
}

// Field is one question of a form.
type Field struct {
	ID       FieldID   `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  string    `json:"options"`

	// ConditionField is the label of the field this one depends on;
	// ConditionFieldID is the same reference by id and wins when both are set.
	ConditionField   string  `json:"conditionField"`
	ConditionFieldID FieldID `json:"conditionFieldId,omitempty"`
	ConditionValue   string  `json:"conditionValue"`

	IsActive bool `json:"isActive"`

	// Extra keeps attributes this version does not know about, so that
	// they survive a load/save cycle.
	Extra map[string]json.RawMessage `json:"-"`

	numericID   bool
	numericCond bool
}

type fieldJSON Field

var knownKeys = map[string]bool{
	"id":               true,
	"label":            true,
	"type":             true,
	"required":         true,
	"options":          true,
	"conditionField":   true,
	"conditionFieldId": true,
	"conditionValue":   true,
	"isActive":         true,
}

func (f Field) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(fieldJSON(f))
	if err != nil || len(f.Extra) == 0 && !f.numericID && !f.numericCond {
		return data, err
	}

	merged := map[string]json.RawMessage{}
	if err = json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	if f.numericID && reJSONNumber.MatchString(string(f.ID)) {
		merged["id"] = json.RawMessage(f.ID)
	}
	if f.numericCond && reJSONNumber.MatchString(string(f.ConditionFieldID)) {
		merged["conditionFieldId"] = json.RawMessage(f.ConditionFieldID)
	}
	return json.Marshal(merged)
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	aux := fieldJSON{IsActive: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = Field(aux)
	f.Extra = nil
	f.numericID = isNumberToken(raw["id"])
	f.numericCond = isNumberToken(raw["conditionFieldId"])

	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = map[string]json.RawMessage{}
		}
		f.Extra[k] = v
	}
	return nil
}

// Choices returns the trimmed, non-empty entries of Options.
func (f Field) Choices() []string {
	var out []string
	for _, opt := range strings.Split(f.Options, ",") {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

// HasCondition reports whether the field's visibility depends on another field.
func (f Field) HasCondition() bool {
	return f.ConditionField != "" || f.ConditionFieldID != ""
}

// dependOn points the condition of f at t.
func (f *Field) dependOn(t Field) {
	f.ConditionFieldID = t.ID
	f.ConditionField = t.Label
	f.numericCond = t.numericID
}

func (f Field) clone() Field {
	if f.Extra != nil {
		extra := make(map[string]json.RawMessage, len(f.Extra))
		for k, v := range f.Extra {
			extra[k] = v
		}
		f.Extra = extra
	}
	return f
}
