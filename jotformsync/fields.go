package jotformsync

import (
	"regexp"
	"strings"
)

// Member attributes a mapping may target.
const (
	FieldFirstName    = "firstName"
	FieldLastName     = "lastName"
	FieldLegalName    = "legalName"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldParentName   = "parentName"
	FieldParentEmail  = "parentEmail"
	FieldParentPhone  = "parentPhone"
	FieldAddress      = "address"
	FieldBirthday     = "birthday"
	FieldAge          = "age"
	FieldSection      = "section"
	FieldInstrument   = "instrument"
	FieldSerialNumber = "serialNumber"
)

type MemberField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// MemberFields lists mapping targets in display order.
var MemberFields = []MemberField{
	{FieldFirstName, "First Name", false},
	{FieldLastName, "Last Name", false},
	{FieldLegalName, "Legal Name", true},
	{FieldEmail, "Email", true},
	{FieldPhone, "Phone", false},
	{FieldParentName, "Parent/Guardian Name", false},
	{FieldParentEmail, "Parent/Guardian Email", false},
	{FieldParentPhone, "Parent/Guardian Phone", false},
	{FieldAddress, "Address", false},
	{FieldBirthday, "Birthday", false},
	{FieldAge, "Age", false},
	{FieldSection, "Section", false},
	{FieldInstrument, "Instrument", false},
	{FieldSerialNumber, "Serial Number", false},
}

func memberFieldLabel(name string) string {
	for _, f := range MemberFields {
		if f.Name == name {
			return f.Label
		}
	}
	return name
}

func IsMemberField(name string) bool {
	for _, f := range MemberFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

var nonDataTypes = map[string]bool{
	"control_text":     true,
	"control_head":     true,
	"control_html":     true,
	"control_button":   true,
	"control_divider":  true,
	"control_image":    true,
	"control_collapse": true,
}

var legalKeywords = []string{
	"contract", "agreement", "terms", "conditions", "waiver", "signature",
	"consent", "disclaimer", "liability", "indemn", "acknowledg", "release", "policy",
}

func isPageBreak(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "pagebreak") || strings.Contains(s, "page break") || strings.Contains(s, "page_break")
}

// IsMappable reports whether a question carries respondent data worth mapping.
func IsMappable(q Question) bool {
	if nonDataTypes[q.Type] || q.Type == "control_pagebreak" {
		return false
	}
	if strings.Contains(q.Text, "<") && strings.Contains(q.Text, ">") {
		return false
	}
	if isPageBreak(q.Text) || isPageBreak(q.Name) || isPageBreak(q.QID) {
		return false
	}
	label := strings.ToLower(q.Text)
	for _, kw := range legalKeywords {
		if strings.Contains(label, kw) {
			return false
		}
	}
	return true
}

func FilterMappableQuestions(questions []Question) []Question {
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		if IsMappable(q) {
			out = append(out, q)
		}
	}
	return out
}

type fieldPattern struct {
	field   string
	match   *regexp.Regexp
	exclude *regexp.Regexp
}

// matches tests the label, then the name. Exclusions look at both so a parent
// question with a generic internal name is not claimed by the member pattern.
func (p fieldPattern) matches(q Question) bool {
	hit := false
	for _, s := range []string{q.Text, q.Name} {
		if s = strings.TrimSpace(s); s != "" && p.match.MatchString(s) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	return p.exclude == nil || !p.exclude.MatchString(q.Text+" "+q.Name)
}

var parentWords = regexp.MustCompile(`(?i)parent|guardian|emergency|mother|father`)

// Order matters: the first matching pattern wins.
var fieldPatterns = []fieldPattern{
	{FieldLegalName, regexp.MustCompile(`(?i)(legal|full)\s*_?name|^\s*(student|member|your|participant)?'?s?\s*name\s*$`), parentWords},
	{FieldEmail, regexp.MustCompile(`(?i)e-?mail|\be\s+mail`), parentWords},
	{FieldParentEmail, regexp.MustCompile(`(?i)(parent|guardian).*e-?mail|e-?mail.*(parent|guardian)`), nil},
	{FieldPhone, regexp.MustCompile(`(?i)phone|\bcell\b|mobile`), parentWords},
	{FieldParentPhone, regexp.MustCompile(`(?i)(parent|guardian).*(phone|\bcell\b|mobile)|(phone|\bcell\b|mobile).*(parent|guardian)`), nil},
	{FieldAddress, regexp.MustCompile(`(?i)address|street|mailing`), nil},
	{FieldBirthday, regexp.MustCompile(`(?i)birth\s*-?\s*day|birth\s*date|date\s*of\s*birth|\bdob\b`), nil},
	{FieldAge, regexp.MustCompile(`(?i)^\s*(student'?s?\s+|your\s+)?age\b|how\s+old`), nil},
	{FieldSection, regexp.MustCompile(`(?i)section|voice\s*(part|type)|ensemble`), nil},
	{FieldInstrument, regexp.MustCompile(`(?i)instrument`), regexp.MustCompile(`(?i)serial`)},
	{FieldSerialNumber, regexp.MustCompile(`(?i)serial`), nil},
}

// SuggestMemberField classifies one question by label, then internal name.
func SuggestMemberField(q Question) (string, bool) {
	for _, p := range fieldPatterns {
		if p.matches(q) {
			return p.field, true
		}
	}
	return "", false
}

// GenerateFieldMappingSuggestions proposes at most one mapping per mappable question.
func GenerateFieldMappingSuggestions(questions []Question) []FieldMapping {
	suggestions := []FieldMapping{}
	for _, q := range FilterMappableQuestions(questions) {
		field, ok := SuggestMemberField(q)
		if !ok {
			continue
		}
		suggestions = append(suggestions, FieldMapping{
			ExternalFieldId:    q.QID,
			ExternalFieldLabel: q.Text,
			MemberField:        field,
			MemberFieldLabel:   memberFieldLabel(field),
			Required:           field == FieldLegalName || field == FieldEmail,
		})
	}
	return suggestions
}
