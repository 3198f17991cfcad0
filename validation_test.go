package main

import (
	"reflect"
	"testing"
)

func TestFieldRuleDerivation(t *testing.T) {
	cases := []struct {
		name  string
		field FormField
		want  []string
	}{
		{
			name:  "required text",
			field: FormField{Name: "message", Type: FieldTypeText, Required: true},
			want:  []string{"string", "min:1", "max:1000", "required", "filled"},
		},
		{
			name:  "optional email",
			field: FormField{Name: "email", Type: FieldTypeEmail},
			want:  []string{"email", "disposable_email", "nullable"},
		},
		{
			name:  "phone",
			field: FormField{Name: "phone", Type: FieldTypePhone},
			want:  []string{"min:5", "max:20", "nullable"},
		},
		{
			name:  "url",
			field: FormField{Name: "link", Type: FieldTypeURL},
			want:  []string{"url", "min:5", "max:2048", "nullable"},
		},
		{
			name:  "honeypot is prohibited, never required",
			field: FormField{Name: "website", Type: FieldTypeHoneypot},
			want:  []string{"prohibited", "nullable"},
		},
		{
			name:  "custom rules appended verbatim",
			field: FormField{Name: "nick", Type: FieldTypeText, Required: true, ValidationRules: "min:3|max:50"},
			want:  []string{"string", "min:1", "max:1000", "required", "filled", "min:3", "max:50"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.field.Rules()
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Rules() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveRulesFollowsFieldOrder(t *testing.T) {
	form := Form{
		Fields: []FormField{
			{Name: "first", Type: FieldTypeText},
			{Name: "second", Type: FieldTypeEmail},
		},
	}
	ruleset := resolveRules(&form)
	if len(ruleset) != 2 || ruleset[0].Name != "first" || ruleset[1].Name != "second" {
		t.Errorf("unexpected ruleset order: %v", ruleset)
	}
}

func TestResolveRulesEmptyForm(t *testing.T) {
	form := Form{}
	ruleset := resolveRules(&form)
	if len(ruleset) != 0 {
		t.Errorf("expected empty ruleset, got %v", ruleset)
	}
	// vacuously valid
	if err := validateSubmission(map[string]any{"anything": "goes"}, ruleset); err != nil {
		t.Errorf("empty ruleset should accept anything, got %v", err)
	}
}

func TestValidateRequiredField(t *testing.T) {
	ruleset := []FieldRules{{Name: "name", Rules: []string{"string", "min:1", "max:1000", "required", "filled"}}}

	if err := validateSubmission(map[string]any{"name": "Ana"}, ruleset); err != nil {
		t.Errorf("present value should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{}, ruleset); err == nil {
		t.Error("absent required field should fail")
	}
	if err := validateSubmission(map[string]any{"name": ""}, ruleset); err == nil {
		t.Error("empty required field should fail")
	}
	if err := validateSubmission(map[string]any{"name": nil}, ruleset); err == nil {
		t.Error("null required field should fail")
	}
}

func TestValidateOptionalFieldMayBeAbsent(t *testing.T) {
	ruleset := []FieldRules{{Name: "phone", Rules: []string{"min:5", "max:20", "nullable"}}}

	if err := validateSubmission(map[string]any{}, ruleset); err != nil {
		t.Errorf("absent optional field should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"phone": nil}, ruleset); err != nil {
		t.Errorf("null optional field should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"phone": "123"}, ruleset); err == nil {
		t.Error("too-short phone should fail min:5")
	}
	if err := validateSubmission(map[string]any{"phone": "555-867-5309"}, ruleset); err != nil {
		t.Errorf("valid phone should pass: %v", err)
	}
}

func TestValidateEmailRule(t *testing.T) {
	ruleset := []FieldRules{{Name: "email", Rules: []string{"email", "required"}}}

	if err := validateSubmission(map[string]any{"email": "jane@example.com"}, ruleset); err != nil {
		t.Errorf("valid email should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"email": "not-an-email"}, ruleset); err == nil {
		t.Error("invalid email should fail")
	}
}

func TestValidateDisposableEmailRule(t *testing.T) {
	ruleset := []FieldRules{{Name: "email", Rules: []string{"email", "disposable_email", "required"}}}

	if err := validateSubmission(map[string]any{"email": "real@example.com"}, ruleset); err != nil {
		t.Errorf("non-disposable domain should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"email": "bot@001310.xyz"}, ruleset); err == nil {
		t.Error("disposable domain should fail")
	}
}

func TestValidateURLRule(t *testing.T) {
	ruleset := []FieldRules{{Name: "link", Rules: []string{"url", "min:5", "max:2048", "required"}}}

	if err := validateSubmission(map[string]any{"link": "https://example.com/page"}, ruleset); err != nil {
		t.Errorf("valid URL should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"link": "not a url"}, ruleset); err == nil {
		t.Error("invalid URL should fail")
	}
}

func TestValidateProhibitedRule(t *testing.T) {
	ruleset := []FieldRules{{Name: "website", Rules: []string{"prohibited", "nullable"}}}

	if err := validateSubmission(map[string]any{}, ruleset); err != nil {
		t.Errorf("absent prohibited field should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"website": ""}, ruleset); err != nil {
		t.Errorf("empty prohibited field should pass: %v", err)
	}
	if err := validateSubmission(map[string]any{"website": "gotcha"}, ruleset); err == nil {
		t.Error("filled prohibited field should fail")
	}
}

func TestValidateCustomRulesApply(t *testing.T) {
	field := FormField{Name: "nick", Type: FieldTypeText, Required: true, ValidationRules: "min:3"}
	ruleset := []FieldRules{{Name: "nick", Rules: field.Rules()}}

	if err := validateSubmission(map[string]any{"nick": "ab"}, ruleset); err == nil {
		t.Error("custom min:3 should reject a two-character value")
	}
	if err := validateSubmission(map[string]any{"nick": "abc"}, ruleset); err != nil {
		t.Errorf("three characters should pass custom min:3: %v", err)
	}
}

func TestValidateUnknownCustomRuleIgnored(t *testing.T) {
	ruleset := []FieldRules{{Name: "x", Rules: []string{"string", "made_up_rule", "required"}}}
	if err := validateSubmission(map[string]any{"x": "value"}, ruleset); err != nil {
		t.Errorf("unknown rules should be ignored: %v", err)
	}
}

func TestEmailDomainHelper(t *testing.T) {
	if got := emailDomain("User@Example.COM"); got != "example.com" {
		t.Errorf("emailDomain = %q, want %q", got, "example.com")
	}
	if got := emailDomain("a@b@last.org"); got != "last.org" {
		t.Errorf("emailDomain should split on the last @, got %q", got)
	}
	if got := emailDomain("no-at-sign"); got != "" {
		t.Errorf("expected empty domain, got %q", got)
	}
}
