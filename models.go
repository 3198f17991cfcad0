package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"wnsforms/constants"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Form represents a configured intake endpoint
type Form struct {
	gorm.Model
	Hash              string `gorm:"uniqueIndex"`
	Name              string
	AllowedDomains    datatypes.JSON `gorm:"type:json"`
	NotificationEmail string
	SlackWebhookURL   string
	SuccessRedirect   string
	ErrorRedirect     string
	IsActive          bool `gorm:"default:true"`

	Fields      []FormField
	Submissions []FormSubmission
}

// BeforeCreate assigns an opaque URL-safe hash if none was provided.
// The hash is immutable once set.
func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.Hash == "" {
		buf := make([]byte, constants.FORM_HASH_BYTES)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		f.Hash = hex.EncodeToString(buf)
	}
	return nil
}

// AllowedDomainList decodes the stored allowed-domains JSON array.
// Returns nil if the form has no restriction configured.
func (f *Form) AllowedDomainList() []string {
	if len(f.AllowedDomains) == 0 {
		return nil
	}
	var domains []string
	if err := json.Unmarshal(f.AllowedDomains, &domains); err != nil {
		return nil
	}
	return domains
}

// IsAllowedDomain reports whether a referring domain may submit to this
// form. An empty allow-list means any domain is accepted.
func (f *Form) IsAllowedDomain(domain string) bool {
	domains := f.AllowedDomainList()
	if len(domains) == 0 {
		return true
	}
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

// FieldNames returns the names of all configured fields, in display order.
func (f *Form) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		names = append(names, field.Name)
	}
	return names
}

// FormField declares one expected submission field for a form
type FormField struct {
	gorm.Model
	FormID          uint   `gorm:"index;uniqueIndex:idx_form_field_name"`
	Name            string `gorm:"uniqueIndex:idx_form_field_name"`
	Type            string `gorm:"default:text"`
	Required        bool   `gorm:"default:false"`
	DisplayOrder    int    `gorm:"default:0"`
	ValidationRules string

	Form Form `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Field types understood by the schema resolver.
const (
	FieldTypeText     = "text"
	FieldTypeEmail    = "email"
	FieldTypePhone    = "phone"
	FieldTypeURL      = "url"
	FieldTypeHoneypot = "honeypot"
)

// Rules derives the declarative validation rule list for this field:
// type rules first, then required/optional semantics, then any custom
// pipe-delimited rules verbatim.
func (f *FormField) Rules() []string {
	var rules []string

	switch f.Type {
	case FieldTypeEmail:
		rules = append(rules, "email", "disposable_email")
	case FieldTypePhone:
		rules = append(rules, "min:5", "max:20")
	case FieldTypeURL:
		rules = append(rules, "url", "min:5", fmt.Sprintf("max:%d", constants.MAX_URL_FIELD_LENGTH))
	case FieldTypeHoneypot:
		rules = append(rules, "prohibited")
	default:
		rules = append(rules, "string", "min:1", fmt.Sprintf("max:%d", constants.MAX_TEXT_FIELD_LENGTH))
	}

	if f.Required {
		rules = append(rules, "required", "filled")
	} else {
		rules = append(rules, "nullable")
	}

	if f.ValidationRules != "" {
		rules = append(rules, strings.Split(f.ValidationRules, "|")...)
	}

	return rules
}

// FormSubmission is an immutable record of one accepted intake event
type FormSubmission struct {
	gorm.Model
	FormID    uint           `gorm:"index"`
	Data      datatypes.JSON `gorm:"type:json"`
	IPAddress string
	UserAgent string
	Referrer  *string

	Form Form `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// DataMap decodes the stored submission data.
func (s *FormSubmission) DataMap() map[string]any {
	var data map[string]any
	if err := json.Unmarshal(s.Data, &data); err != nil {
		return nil
	}
	return data
}

// AdminUser represents an operator with access to the admin API
type AdminUser struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex"`
	PasswordHash []byte
	SessionToken string `gorm:"index"`
}
