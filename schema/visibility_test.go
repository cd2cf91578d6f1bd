package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVisibleWithoutCondition(t *testing.T) {
	f := Field{Label: "Name"}
	for _, answers := range []AnswerSet{nil, {}, {"Name": "x"}, {"Other": "y"}} {
		assert.True(t, IsVisible(f, answers))
	}
}

func TestIsVisibleExactMatch(t *testing.T) {
	f := Field{Label: "Why", ConditionField: "Agree", ConditionValue: "Yes"}

	tests := []struct {
		answers AnswerSet
		want    bool
	}{
		{AnswerSet{"Agree": "Yes"}, true},
		{AnswerSet{"Agree": "yes"}, false},
		{AnswerSet{"Agree": "Yes "}, false},
		{AnswerSet{"Agree": "No"}, false},
		{AnswerSet{}, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVisible(f, tt.answers), "answers %v", tt.answers)
	}
}

func TestIsVisibleAgreesWithVisibleFieldsOnIDReference(t *testing.T) {
	s := Schema{
		{ID: "1", Label: "Country", Type: Select, Options: "US,CA", IsActive: true},
		{ID: "2", Label: "State", Type: Text, ConditionFieldID: "1", ConditionValue: "US", IsActive: true},
	}
	answers := AnswerSet{"Country": "CA"}

	assert.False(t, IsVisible(s[1], answers))
	assert.Equal(t, []string{"Country"}, VisibleFields(s, answers).Labels())

	linked := Link(s)
	assert.False(t, IsVisible(linked[1], answers))
	assert.True(t, IsVisible(linked[1], AnswerSet{"Country": "US"}))
}

func TestIsVisibleEmptyConditionValueNeedsAnAnswer(t *testing.T) {
	f := Field{ConditionField: "Agree", ConditionValue: ""}
	assert.False(t, IsVisible(f, AnswerSet{}))
	assert.True(t, IsVisible(f, AnswerSet{"Agree": ""}))
}

func TestVisibleFieldsCountryState(t *testing.T) {
	s := Schema{
		{ID: "1", Label: "Country", Type: Select, Options: "US,CA", IsActive: true},
		{ID: "2", Label: "State", Type: Text, ConditionField: "Country", ConditionValue: "US", IsActive: true},
	}

	assert.Equal(t, []string{"Country"}, VisibleFields(s, AnswerSet{"Country": "CA"}).Labels())
	assert.Equal(t, []string{"Country", "State"}, VisibleFields(s, AnswerSet{"Country": "US"}).Labels())
}

func TestVisibleFieldsChain(t *testing.T) {
	s := Schema{
		{ID: "1", Label: "Country", Type: Text, IsActive: true},
		{ID: "2", Label: "State", Type: Text, ConditionField: "Country", ConditionValue: "US", IsActive: true},
		{ID: "3", Label: "City", Type: Text, ConditionField: "State", ConditionValue: "NY", IsActive: true},
	}

	got := VisibleFields(s, AnswerSet{"Country": "US", "State": "NY"})
	assert.Equal(t, []string{"Country", "State", "City"}, got.Labels())

	// State is hidden, so its stale answer must not reveal City
	got = VisibleFields(s, AnswerSet{"Country": "CA", "State": "NY"})
	assert.Equal(t, []string{"Country"}, got.Labels())
}

func TestVisibleFieldsSkipsInactive(t *testing.T) {
	s := Schema{
		{ID: "1", Label: "A", Type: Text, IsActive: false},
		{ID: "2", Label: "B", Type: Text, ConditionField: "A", ConditionValue: "x", IsActive: true},
		{ID: "3", Label: "C", Type: Text, IsActive: true},
	}
	assert.Equal(t, []string{"C"}, VisibleFields(s, AnswerSet{"A": "x"}).Labels())
}

func TestVisibleFieldsDanglingCondition(t *testing.T) {
	s := Schema{
		{ID: "2", Label: "B", Type: Text, ConditionField: "Gone", ConditionValue: "x", IsActive: true},
		{ID: "3", Label: "C", Type: Text, ConditionFieldID: "9", ConditionField: "Gone", ConditionValue: "x", IsActive: true},
	}
	assert.Empty(t, VisibleFields(s, AnswerSet{"Gone": "x"}))
}

func TestVisibleFieldsForwardReference(t *testing.T) {
	// not accepted by Validate, but evaluation follows the dependency order
	s := Schema{
		{ID: "1", Label: "Detail", Type: Text, ConditionFieldID: "2", ConditionField: "Toggle", ConditionValue: "on", IsActive: true},
		{ID: "2", Label: "Toggle", Type: Text, IsActive: true},
	}
	assert.Equal(t, []string{"Detail", "Toggle"}, VisibleFields(s, AnswerSet{"Toggle": "on"}).Labels())
	assert.Equal(t, []string{"Toggle"}, VisibleFields(s, AnswerSet{"Toggle": "off"}).Labels())
}

func TestVisibleFieldsCycle(t *testing.T) {
	s := Schema{
		{ID: "1", Label: "A", Type: Text, ConditionFieldID: "2", ConditionValue: "x", IsActive: true},
		{ID: "2", Label: "B", Type: Text, ConditionFieldID: "1", ConditionValue: "x", IsActive: true},
		{ID: "3", Label: "C", Type: Text, IsActive: true},
	}
	assert.Equal(t, []string{"C"}, VisibleFields(s, AnswerSet{"A": "x", "B": "x"}).Labels())
}

func TestDependencyOrder(t *testing.T) {
	order, cyclic := sample().dependencyOrder()
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Empty(t, cyclic)
}
