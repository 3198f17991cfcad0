package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// SpamCheck is one independent spam-detection stage. Check reports
// whether the submission is spam and, when it is, the reason. Checks
// hold configuration only, so a single instance is safe for concurrent
// requests.
type SpamCheck interface {
	Check(data map[string]any) (bool, string)
}

// SpamDetector evaluates an ordered chain of checks and short-circuits on
// the first positive, returning its reason. An empty string means clean.
type SpamDetector struct {
	checks []SpamCheck
}

func (d *SpamDetector) AddCheck(check SpamCheck) *SpamDetector {
	d.checks = append(d.checks, check)
	return d
}

func (d *SpamDetector) Detect(data map[string]any) string {
	for _, check := range d.checks {
		if spam, message := check.Check(data); spam {
			return message
		}
	}
	return ""
}

// NewSpamDetector assembles the canonical check chain from configuration.
func NewSpamDetector() *SpamDetector {
	detector := &SpamDetector{}
	detector.
		AddCheck(&KeywordSpamCheck{keywords: viper.GetStringSlice("spam.keywords")}).
		AddCheck(&URLCountSpamCheck{maxURLs: viper.GetInt("spam.max_urls")}).
		AddCheck(&HTMLSpamCheck{}).
		AddCheck(&EmailDomainBlacklistSpamCheck{domains: viper.GetStringSlice("spam.blacklisted_email_domains")}).
		AddCheck(&ExactEmailBlacklistSpamCheck{emails: viper.GetStringSlice("spam.blacklisted_emails")})
	return detector
}

// joinFieldValues concatenates every submitted value into one string,
// flattening array values with a join.
func joinFieldValues(data map[string]any) string {
	parts := make([]string, 0, len(data))
	for _, value := range data {
		s, _ := valueAsString(value)
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// stringFieldValues yields each scalar string value, including the elements
// of array values.
func stringFieldValues(data map[string]any) []string {
	var values []string
	for _, value := range data {
		switch v := value.(type) {
		case string:
			values = append(values, v)
		case []string:
			values = append(values, v...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					values = append(values, s)
				}
			}
		}
	}
	return values
}

// isEmailField reports whether a field name suggests an email address and
// the value actually is one.
func isEmailField(key, value string) bool {
	return strings.Contains(strings.ToLower(key), "email") && isValidEmail(value)
}

// KeywordSpamCheck flags submissions containing any configured spam
// keyword, case-insensitively, anywhere in the concatenated field values.
type KeywordSpamCheck struct {
	keywords []string
}

func (c *KeywordSpamCheck) Check(data map[string]any) (bool, string) {
	content := strings.ToLower(joinFieldValues(data))
	for _, keyword := range c.keywords {
		if strings.Contains(content, strings.ToLower(keyword)) {
			return true, fmt.Sprintf("Submission contains spam keyword: %s", keyword)
		}
	}
	return false, ""
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// URLCountSpamCheck flags submissions whose concatenated values contain
// more than maxURLs HTTP(S) URLs.
type URLCountSpamCheck struct {
	maxURLs int
}

func (c *URLCountSpamCheck) Check(data map[string]any) (bool, string) {
	count := len(urlPattern.FindAllString(joinFieldValues(data), -1))
	if count > c.maxURLs {
		return true, fmt.Sprintf("Submission contains too many URLs (%d found, maximum allowed: %d)", count, c.maxURLs)
	}
	return false, ""
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// HTMLSpamCheck flags submissions where stripping markup from any string
// value changes that value.
type HTMLSpamCheck struct{}

func (c *HTMLSpamCheck) Check(data map[string]any) (bool, string) {
	for _, value := range stringFieldValues(data) {
		if htmlTagPattern.ReplaceAllString(value, "") != value {
			return true, "HTML content detected in submission"
		}
	}
	return false, ""
}

// EmailDomainBlacklistSpamCheck flags email-looking fields whose domain
// matches the blacklist.
type EmailDomainBlacklistSpamCheck struct {
	domains []string
}

func (c *EmailDomainBlacklistSpamCheck) Check(data map[string]any) (bool, string) {
	for key, value := range data {
		s, ok := value.(string)
		if !ok || !isEmailField(key, s) {
			continue
		}
		domain := emailDomain(s)
		for _, blacklisted := range c.domains {
			if domain == strings.ToLower(blacklisted) {
				return true, "Email domain is blacklisted."
			}
		}
	}
	return false, ""
}

// ExactEmailBlacklistSpamCheck flags email-looking fields whose full value
// exactly matches a blacklisted address.
type ExactEmailBlacklistSpamCheck struct {
	emails []string
}

func (c *ExactEmailBlacklistSpamCheck) Check(data map[string]any) (bool, string) {
	for key, value := range data {
		s, ok := value.(string)
		if !ok || !isEmailField(key, s) {
			continue
		}
		lowered := strings.ToLower(s)
		for _, blacklisted := range c.emails {
			if lowered == strings.ToLower(blacklisted) {
				return true, "This email address is blacklisted."
			}
		}
	}
	return false, ""
}
