package jotformsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMappableQuestions(t *testing.T) {
	questions := []Question{
		{QID: "1", Type: "control_head", Text: "Spring Registration"},
		{QID: "2", Type: "control_fullname", Text: "Student's Name", Name: "studentName"},
		{QID: "3", Type: "control_text", Text: "Please read carefully"},
		{QID: "4", Type: "control_textbox", Text: "<b>Important</b> notes"},
		{QID: "5", Type: "control_pagebreak", Text: "Page Break"},
		{QID: "6", Type: "control_textbox", Text: "Next", Name: "pageBreak6"},
		{QID: "7", Type: "control_checkbox", Text: "I agree to the Terms and Conditions"},
		{QID: "8", Type: "control_signature", Text: "Parent Signature"},
		{QID: "9", Type: "control_email", Text: "Email", Name: "email"},
	}

	got := FilterMappableQuestions(questions)
	ids := []string{}
	for _, q := range got {
		ids = append(ids, q.QID)
	}
	assert.Equal(t, []string{"2", "9"}, ids)
}

func TestSuggestMemberField(t *testing.T) {
	cases := []struct {
		text string
		name string
		want string
	}{
		{"Student's Name", "", FieldLegalName},
		{"Full Name", "", FieldLegalName},
		{"Name", "", FieldLegalName},
		{"Email", "", FieldEmail},
		{"E-mail Address", "", FieldEmail},
		{"Parent Email", "", FieldParentEmail},
		{"Contact", "guardianEmail", FieldParentEmail},
		{"Cell", "", FieldPhone},
		{"Parent/Guardian Phone Number", "", FieldParentPhone},
		{"Home Mailing Address", "", FieldAddress},
		{"Date of Birth", "", FieldBirthday},
		{"Birthday", "", FieldBirthday},
		{"Age", "", FieldAge},
		{"How old are you?", "", FieldAge},
		{"Voice Part", "", FieldSection},
		{"Instrument", "", FieldInstrument},
		{"Instrument Serial Number", "", FieldSerialNumber},
		{"Question 12", "email", FieldEmail},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := SuggestMemberField(Question{Text: tc.text, Name: tc.name})
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := SuggestMemberField(Question{Text: "Favorite composer"})
	assert.False(t, ok)
	_, ok = SuggestMemberField(Question{Text: "Parent Name"})
	assert.False(t, ok, "parent names are not the member's legal name")
}

func TestGenerateFieldMappingSuggestions(t *testing.T) {
	questions := []Question{
		{QID: "1", Type: "control_head", Text: "Welcome"},
		{QID: "3", Type: "control_fullname", Text: "Full Name"},
		{QID: "4", Type: "control_email", Text: "Email"},
		{QID: "5", Type: "control_textbox", Text: "T-shirt size"},
		{QID: "6", Type: "control_checkbox", Text: "Liability waiver"},
	}
	got := GenerateFieldMappingSuggestions(questions)
	require.Len(t, got, 2)
	assert.Equal(t, FieldMapping{
		ExternalFieldId:    "3",
		ExternalFieldLabel: "Full Name",
		MemberField:        FieldLegalName,
		MemberFieldLabel:   "Legal Name",
		Required:           true,
	}, got[0])
	assert.Equal(t, FieldEmail, got[1].MemberField)
	assert.True(t, got[1].Required)

	assert.Empty(t, GenerateFieldMappingSuggestions(nil))
}
