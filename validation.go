package main

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// FieldRules pairs a field name with its derived constraint list.
type FieldRules struct {
	Name  string
	Rules []string
}

// resolveRules builds the composite validation ruleset for a form from its
// configured fields, in display order. A form with no fields yields an
// empty ruleset and validation is vacuously satisfied.
func resolveRules(form *Form) []FieldRules {
	ruleset := make([]FieldRules, 0, len(form.Fields))
	for _, field := range form.Fields {
		ruleset = append(ruleset, FieldRules{Name: field.Name, Rules: field.Rules()})
	}
	return ruleset
}

// validateSubmission applies the ruleset to the submitted data. It returns
// nil on success, or an error describing the first violation. The error is
// for operator logs only and must never reach the caller.
func validateSubmission(data map[string]any, ruleset []FieldRules) error {
	for _, fr := range ruleset {
		if err := validateField(data, fr); err != nil {
			return err
		}
	}
	return nil
}

func validateField(data map[string]any, fr FieldRules) error {
	value, present := data[fr.Name]
	str, isString := valueAsString(value)
	empty := !present || value == nil || (isString && strings.TrimSpace(str) == "")

	var required bool
	for _, rule := range fr.Rules {
		switch rule {
		case "required", "filled":
			required = true
		case "prohibited":
			// presence with a non-empty value is itself the violation
			if !empty {
				return fmt.Errorf("field %q failed rule %q", fr.Name, rule)
			}
			return nil
		}
	}

	if empty {
		if required {
			return fmt.Errorf("field %q failed rule %q", fr.Name, "required")
		}
		// optional fields may be absent or null; nothing further to check
		return nil
	}

	for _, rule := range fr.Rules {
		if err := applyRule(fr.Name, str, isString, rule); err != nil {
			return err
		}
	}
	return nil
}

func applyRule(name, value string, isString bool, rule string) error {
	arg := ""
	if i := strings.IndexByte(rule, ':'); i >= 0 {
		arg = rule[i+1:]
		rule = rule[:i]
	}

	switch rule {
	case "required", "filled", "nullable", "prohibited":
		// handled by the presence pass
		return nil
	case "string":
		if !isString {
			return fmt.Errorf("field %q failed rule %q", name, rule)
		}
	case "email":
		if !isString || !isValidEmail(value) {
			return fmt.Errorf("field %q failed rule %q", name, rule)
		}
	case "disposable_email":
		if isString && isValidEmail(value) {
			domain := emailDomain(value)
			for _, d := range viper.GetStringSlice("spam.disposable_email_domains") {
				if domain == strings.ToLower(d) {
					return fmt.Errorf("field %q failed rule %q", name, rule)
				}
			}
		}
	case "url":
		u, err := url.Parse(value)
		if !isString || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("field %q failed rule %q", name, rule)
		}
	case "min":
		n, err := strconv.Atoi(arg)
		if err == nil && len(value) < n {
			return fmt.Errorf("field %q failed rule \"min:%s\"", name, arg)
		}
	case "max":
		n, err := strconv.Atoi(arg)
		if err == nil && len(value) > n {
			return fmt.Errorf("field %q failed rule \"max:%s\"", name, arg)
		}
	}
	// unrecognised custom rules are ignored
	return nil
}

// valueAsString normalises a submitted value to a string. Array values are
// flattened by joining with ", "; those count as non-string for rules that
// demand a scalar.
func valueAsString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []string:
		return strings.Join(v, ", "), false
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", "), false
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), false
	}
}

// isValidEmail reports whether value is a plain, syntactically valid email
// address (no display name, exactly the address itself).
func isValidEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return addr.Address == value && strings.Contains(value, "@")
}

// emailDomain returns the lower-cased domain portion after the last "@".
func emailDomain(value string) string {
	i := strings.LastIndexByte(value, '@')
	if i < 0 || i == len(value)-1 {
		return ""
	}
	return strings.ToLower(value[i+1:])
}
