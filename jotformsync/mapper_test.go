package jotformsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var basicMappings = []FieldMapping{
	{ExternalFieldId: "3", MemberField: FieldLegalName},
	{ExternalFieldId: "4", MemberField: FieldEmail},
	{ExternalFieldId: "5", MemberField: FieldAge},
	{ExternalFieldId: "6", MemberField: FieldBirthday},
	{ExternalFieldId: "7", MemberField: FieldSection},
}

func TestMapSubmissionToMember(t *testing.T) {
	sub := Submission{
		ID: "5812",
		Answers: map[string]any{
			"3": map[string]any{"first": "Mary Ann", "last": "Smith"},
			"4": "  Mary.Smith@Example.com ",
			"5": "16 years",
			"6": map[string]any{"month": "03", "day": "15", "year": "2008"},
			"7": []any{"Soprano", "Alto"},
		},
	}

	c := MapSubmissionToMember(sub, basicMappings, "2024-2025")
	require.NotNil(t, c)
	assert.Equal(t, "5812", c.ExternalSubmissionId)
	assert.Equal(t, "jotform", c.Source)
	assert.Equal(t, "2024-2025", c.Season)
	assert.Equal(t, "Mary Ann Smith", c.LegalName)
	assert.Equal(t, "Mary Ann", c.FirstName)
	assert.Equal(t, "Smith", c.LastName)
	assert.Equal(t, "Mary.Smith@Example.com", c.Email, "import keeps the email's case")
	require.NotNil(t, c.Age)
	assert.Equal(t, 16, *c.Age)
	assert.Equal(t, "2008-03-15", c.Birthday)
	assert.Equal(t, "Soprano, Alto", c.Section)
}

func TestMapSubmissionSingleTokenName(t *testing.T) {
	sub := Submission{ID: "1", Answers: map[string]any{"3": "Cher", "4": "cher@example.com"}}
	c := MapSubmissionToMember(sub, basicMappings, "")
	require.NotNil(t, c)
	assert.Equal(t, "Cher", c.FirstName)
	assert.Equal(t, LastNamePlaceholder, c.LastName)
}

func TestMapSubmissionExplicitNamesWin(t *testing.T) {
	mappings := append([]FieldMapping{
		{ExternalFieldId: "1", MemberField: FieldFirstName},
	}, basicMappings...)
	sub := Submission{ID: "1", Answers: map[string]any{
		"1": "Annie",
		"3": "Anne Marie Jones",
		"4": "annie@example.com",
	}}
	c := MapSubmissionToMember(sub, mappings, "")
	require.NotNil(t, c)
	assert.Equal(t, "Annie", c.FirstName)
	assert.Equal(t, "Jones", c.LastName)
}

func TestMapSubmissionRejectsMissingEmail(t *testing.T) {
	for name, answer := range map[string]any{
		"absent":    nil,
		"blank":     "   ",
		"malformed": "not-an-email",
		"no tld":    "someone@localhost",
	} {
		t.Run(name, func(t *testing.T) {
			answers := map[string]any{"3": "Some Body"}
			if answer != nil {
				answers["4"] = answer
			}
			assert.Nil(t, MapSubmissionToMember(Submission{ID: "9", Answers: answers}, basicMappings, ""))
		})
	}
}

func TestMapSubmissionLaterMappingOverwrites(t *testing.T) {
	mappings := []FieldMapping{
		{ExternalFieldId: "4", MemberField: FieldEmail},
		{ExternalFieldId: "8", MemberField: FieldEmail},
		{ExternalFieldId: "9", MemberField: FieldEmail},
	}
	sub := Submission{ID: "2", Answers: map[string]any{
		"4": "first@example.com",
		"8": "second@example.com",
	}}
	c := MapSubmissionToMember(sub, mappings, "")
	require.NotNil(t, c)
	assert.Equal(t, "second@example.com", c.Email, "an unanswered later mapping leaves the value alone")
}

func TestMapSubmissionDropsUnparseableValues(t *testing.T) {
	sub := Submission{ID: "3", Answers: map[string]any{
		"4": "kid@example.com",
		"5": "sixteen",
		"6": "someday",
	}}
	c := MapSubmissionToMember(sub, basicMappings, "")
	require.NotNil(t, c)
	assert.Nil(t, c.Age)
	assert.Empty(t, c.Birthday)
}

func TestCoerceBirthday(t *testing.T) {
	cases := map[string]any{
		"iso":        "2008-03-15",
		"us slashes": "03/15/2008",
		"short":      "3/15/2008",
		"long":       "March 15, 2008",
		"control":    map[string]any{"year": float64(2008), "month": float64(3), "day": float64(15)},
		"datetime":   map[string]any{"datetime": "2008-03-15 00:00:00"},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := coerceBirthday(v)
			require.True(t, ok)
			assert.Equal(t, "2008-03-15", got)
		})
	}

	_, ok := coerceBirthday(map[string]any{"year": "2008", "month": "2", "day": "30"})
	assert.False(t, ok)
}

func TestCoerceAge(t *testing.T) {
	age, ok := coerceAge(float64(14))
	require.True(t, ok)
	assert.Equal(t, 14, age)

	age, ok = coerceAge(" 12yo")
	require.True(t, ok)
	assert.Equal(t, 12, age)

	_, ok = coerceAge("about twelve")
	assert.False(t, ok)
}
