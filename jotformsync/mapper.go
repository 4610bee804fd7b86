package jotformsync

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

const LastNamePlaceholder = "---"

var birthdayLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// flattenAnswer renders a Jotform answer as text. Composite answers (full name,
// address) are joined; the bool is false for absent or blank answers.
func flattenAnswer(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if p, ok := flattenAnswer(item); ok {
				parts = append(parts, p)
			}
		}
		s = strings.Join(parts, ", ")
	case map[string]any:
		s = flattenMap(t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func flattenMap(m map[string]any) string {
	if _, ok := m["first"]; ok {
		parts := []string{}
		for _, k := range []string{"prefix", "first", "middle", "last", "suffix"} {
			if p, ok := flattenAnswer(m[k]); ok {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, " ")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if p, ok := flattenAnswer(m[k]); ok {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// parseLeadingInt reads an optionally signed run of leading digits, ignoring what follows ("16 years" -> 16).
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func coerceAge(v any) (int, bool) {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	}
	s, ok := flattenAnswer(v)
	if !ok {
		return 0, false
	}
	return parseLeadingInt(s)
}

// coerceBirthday normalizes to YYYY-MM-DD. Date controls answer as {year, month, day}.
func coerceBirthday(v any) (string, bool) {
	if m, ok := v.(map[string]any); ok {
		if _, hasYear := m["year"]; hasYear {
			y, okY := coerceAge(m["year"])
			mo, okM := coerceAge(m["month"])
			d, okD := coerceAge(m["day"])
			if !okY || !okM || !okD {
				return "", false
			}
			t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
			if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
				return "", false
			}
			return t.Format("2006-01-02"), true
		}
		if dt, ok := m["datetime"]; ok {
			return coerceBirthday(dt)
		}
	}
	s, ok := flattenAnswer(v)
	if !ok {
		return "", false
	}
	for _, layout := range birthdayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// assign stores value on the candidate. Unknown attributes are ignored.
func (c *MemberCandidate) assign(field string, value string) bool {
	switch field {
	case FieldFirstName:
		c.FirstName = value
	case FieldLastName:
		c.LastName = value
	case FieldLegalName:
		c.LegalName = value
	case FieldEmail:
		c.Email = value
	case FieldPhone:
		c.Phone = value
	case FieldParentName:
		c.ParentName = value
	case FieldParentEmail:
		c.ParentEmail = value
	case FieldParentPhone:
		c.ParentPhone = value
	case FieldAddress:
		c.Address = value
	case FieldBirthday:
		c.Birthday = value
	case FieldSection:
		c.Section = value
	case FieldInstrument:
		c.Instrument = value
	case FieldSerialNumber:
		c.SerialNumber = value
	default:
		return false
	}
	return true
}

func splitLegalName(c *MemberCandidate) {
	if c.LegalName == "" || (c.FirstName != "" && c.LastName != "") {
		return
	}
	tokens := strings.Fields(c.LegalName)
	if len(tokens) == 0 {
		return
	}
	first, last := tokens[0], LastNamePlaceholder
	if len(tokens) > 1 {
		first = strings.Join(tokens[:len(tokens)-1], " ")
		last = tokens[len(tokens)-1]
	}
	if c.FirstName == "" {
		c.FirstName = first
	}
	if c.LastName == "" {
		c.LastName = last
	}
}

// MapSubmissionToMember applies mappings in order (later mappings overwrite earlier
// ones for the same attribute) and returns nil when the result has no usable email.
// It does no I/O and never panics.
func MapSubmissionToMember(sub Submission, mappings []FieldMapping, defaultSeason string) (candidate *MemberCandidate) {
	logger := config.GetLogger()
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"module":       "jotformsync",
				"submissionId": sub.ID,
			}).Errorf("mapping panicked: %v", r)
			candidate = nil
		}
	}()

	c := &MemberCandidate{
		ExternalSubmissionId: sub.ID,
		Source:               string(models.MemberSourceJotform),
		Season:               defaultSeason,
	}

	for _, m := range mappings {
		raw, ok := sub.Answers[m.ExternalFieldId]
		if !ok || raw == nil {
			continue
		}
		switch m.MemberField {
		case FieldAge:
			if age, ok := coerceAge(raw); ok {
				c.Age = &age
			} else {
				logger.WithFields(logrus.Fields{"module": "jotformsync", "submissionId": sub.ID, "field": m.ExternalFieldId}).
					Debug("dropping unparseable age")
			}
		case FieldBirthday:
			if bday, ok := coerceBirthday(raw); ok {
				c.Birthday = bday
			} else {
				logger.WithFields(logrus.Fields{"module": "jotformsync", "submissionId": sub.ID, "field": m.ExternalFieldId}).
					Debug("dropping unparseable birthday")
			}
		default:
			value, ok := flattenAnswer(raw)
			if !ok {
				continue
			}
			if !c.assign(m.MemberField, value) {
				logger.WithFields(logrus.Fields{"module": "jotformsync", "submissionId": sub.ID, "memberField": m.MemberField}).
					Warn("ignoring mapping to unknown member field")
			}
		}
	}

	splitLegalName(c)

	if !utils.IsValidEmail(c.Email) {
		logger.WithFields(logrus.Fields{"module": "jotformsync", "submissionId": sub.ID}).
			Info("rejecting submission: invalid or missing email")
		return nil
	}
	return c
}
