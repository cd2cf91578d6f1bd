package schema

// Placeholder fills table cells for which a record holds no answer.
const Placeholder = "—"

// Column is one column of the response table.
type Column struct {
	ID    FieldID   `json:"id"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// Columns derives the response table columns from the active fields of s.
// Fields added after a record was submitted still get a column; deactivated
// fields get none even if records hold answers for them.
func Columns(s Schema) []Column {
	out := []Column{}
	for _, f := range s.Active() {
		out = append(out, Column{ID: f.ID, Label: f.Label, Type: f.Type})
	}
	return out
}

// Row projects a stored answer set onto Columns(s).
func Row(s Schema, stored AnswerSet) []string {
	byID := Rekey(s, stored)
	cols := Columns(s)
	out := make([]string, len(cols))
	for i, c := range cols {
		v, ok := byID[string(c.ID)]
		if !ok || v == "" {
			v = Placeholder
		}
		out[i] = v
	}
	return out
}
