package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"wnsforms/constants"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// outcomeKind classifies the terminal state of one intake request.
type outcomeKind int

const (
	outcomeAccepted outcomeKind = iota
	// silently dropped: the caller sees a success shape, data is discarded
	outcomeSilentDrop
	// hard reject: the caller gets an honest error (domain, rate limit)
	outcomeHardReject
)

type submitOutcome struct {
	kind       outcomeKind
	reason     string // operator-facing detail, never sent to the caller
	status     int    // hard reject HTTP status
	message    string // hard reject message
	retryAfter int    // seconds, set for rate-limit rejections
}

func silentDrop(reason string) submitOutcome {
	return submitOutcome{kind: outcomeSilentDrop, reason: reason}
}

func hardReject(status int, message string) submitOutcome {
	return submitOutcome{kind: outcomeHardReject, status: status, message: message}
}

// SubmitForm handles POST /post/{hash}, the public intake endpoint.
func SubmitForm(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	form, found := loadFormByHash(hash)
	if !found {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Form not found"})
		return
	}

	data, err := parseSubmissionData(r)
	if err != nil {
		// an unreadable body gets the same treatment as any other bot noise
		slog.Info("unparseable submission body", "form_id", form.ID, "error", err)
		data = map[string]any{}
	}

	outcome := runPipeline(r, &form, data)

	switch outcome.kind {
	case outcomeHardReject:
		if outcome.reason != "" {
			slog.Info("submission rejected", "form_id", form.ID, "reason", outcome.reason)
		}
		if !wantsJSON(r) && form.ErrorRedirect != "" {
			redirectWithFlash(w, r, form.ErrorRedirect, "error", outcome.message)
			return
		}
		payload := map[string]any{"message": outcome.message}
		if outcome.retryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprint(outcome.retryAfter))
			payload["retry_after"] = outcome.retryAfter
		}
		respondJSON(w, outcome.status, payload)
	case outcomeSilentDrop:
		slog.Info("submission silently dropped", "form_id", form.ID, "reason", outcome.reason)
		respondSuccess(w, r, &form)
	case outcomeAccepted:
		respondSuccess(w, r, &form)
	}
}

// runPipeline executes the intake stages in order, short-circuiting on the
// first terminal outcome. Persistence and notification dispatch happen
// here; once a submission row exists the outcome is always accepted.
func runPipeline(r *http.Request, form *Form, data map[string]any) submitOutcome {
	// domain guard: integrator misconfiguration gets an honest error
	if domain := refererDomain(r); domain != "" && !form.IsAllowedDomain(domain) {
		out := hardReject(http.StatusForbidden, "Domain not allowed")
		out.reason = fmt.Sprintf("domain %q not in allow-list", domain)
		return out
	}

	if name, tripped := honeypotTriggered(form, data); tripped {
		return silentDrop(fmt.Sprintf("honeypot field %q was filled", name))
	}

	ip := clientIP(r)
	key := "form_submissions:" + ip
	maxAttempts := viper.GetInt("rate_limit.max_attempts")
	decaySeconds := viper.GetInt("rate_limit.decay_seconds")

	if rateLimiter.TooManyAttempts(key, maxAttempts) {
		out := hardReject(http.StatusTooManyRequests, "Too many submissions. Please try again later.")
		out.retryAfter = rateLimiter.AvailableIn(key)
		out.reason = fmt.Sprintf("rate limit exceeded for %s", ip)
		return out
	}

	if err := validateSubmission(data, resolveRules(form)); err != nil {
		return silentDrop("validation failed: " + err.Error())
	}

	if spamMessage := spamDetector.Detect(data); spamMessage != "" {
		return silentDrop("spam detected: " + spamMessage)
	}

	persisted, err := json.Marshal(restrictToConfigured(form, data))
	if err != nil {
		return hardReject(http.StatusInternalServerError, "Error saving submission")
	}

	var referrer *string
	if ref := r.Header.Get("Referer"); ref != "" {
		referrer = &ref
	}

	submission := FormSubmission{
		FormID:    form.ID,
		Data:      datatypes.JSON(persisted),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		Referrer:  referrer,
	}
	if result := db.Create(&submission); result.Error != nil {
		slog.Error("failed to persist submission", "form_id", form.ID, "error", result.Error)
		return hardReject(http.StatusInternalServerError, "Error saving submission")
	}

	rateLimiter.Hit(key, decaySeconds)

	slog.Info("form submission received",
		"form_id", form.ID,
		"form_name", form.Name,
		"ip_address", ip,
		"user_agent", r.UserAgent(),
	)

	// best effort, single attempt: failures are logged and dropped
	dispatchNotifications(form, submission.DataMap(), &submission)

	return submitOutcome{kind: outcomeAccepted}
}

// loadFormByHash resolves an active form, serving hot forms from cache.
func loadFormByHash(hash string) (Form, bool) {
	if form, ok := formCache.Get(hash); ok {
		return form, true
	}

	var form Form
	result := db.Preload("Fields", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("display_order ASC, id ASC")
	}).Where("hash = ? AND is_active = ?", hash, true).First(&form)
	if result.Error != nil {
		return Form{}, false
	}

	formCache.Set(form)
	return form, true
}

// honeypotTriggered reports whether any honeypot field carries a value.
// Fields typed honeypot always count; the conventional fallback names only
// apply when the form has not claimed that name for a real field.
func honeypotTriggered(form *Form, data map[string]any) (string, bool) {
	configured := make(map[string]string, len(form.Fields))
	for _, field := range form.Fields {
		configured[field.Name] = field.Type
		if field.Type == FieldTypeHoneypot && fieldHasValue(data, field.Name) {
			return field.Name, true
		}
	}

	for _, name := range constants.FALLBACK_HONEYPOT_FIELDS {
		if fieldType, claimed := configured[name]; claimed && fieldType != FieldTypeHoneypot {
			continue
		}
		if fieldHasValue(data, name) {
			return name, true
		}
	}
	return "", false
}

func fieldHasValue(data map[string]any, name string) bool {
	value, ok := data[name]
	if !ok || value == nil {
		return false
	}
	s, _ := valueAsString(value)
	return strings.TrimSpace(s) != ""
}

// restrictToConfigured drops everything the form does not declare, plus
// honeypot fields, so internal keys never reach storage or notifications.
func restrictToConfigured(form *Form, data map[string]any) map[string]any {
	kept := make(map[string]any)
	for _, field := range form.Fields {
		if field.Type == FieldTypeHoneypot {
			continue
		}
		if value, ok := data[field.Name]; ok {
			kept[field.Name] = value
		}
	}
	return kept
}

// parseSubmissionData reads form-encoded or JSON bodies into a flat map.
func parseSubmissionData(r *http.Request) (map[string]any, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.Contains(contentType, "application/json") {
		data := make(map[string]any)
		decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
		if err := decoder.Decode(&data); err != nil {
			return nil, err
		}
		return data, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	data := make(map[string]any, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) == 1 {
			data[key] = values[0]
		} else {
			flattened := make([]any, len(values))
			for i, v := range values {
				flattened[i] = v
			}
			data[key] = flattened
		}
	}
	return data, nil
}

// wantsJSON reports whether the caller asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// refererDomain extracts the host of the referring page, or "" if the
// request carries no usable Referer header.
func refererDomain(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// clientIP returns the request's client address without the port. The
// RealIP middleware has already resolved proxy headers by this point.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondSuccess emits the single success shape used for both real accepts
// and silent drops, so the two are indistinguishable to the caller.
func respondSuccess(w http.ResponseWriter, r *http.Request, form *Form) {
	if !wantsJSON(r) && form.SuccessRedirect != "" {
		redirectWithFlash(w, r, form.SuccessRedirect, "success", "Form submitted successfully!")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Form submission received"})
}

// redirectWithFlash sets a one-shot flash cookie and redirects the browser
// to the form's configured page.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:  "wnsforms_flash_" + kind,
		Value: url.QueryEscape(message),
		Path:  "/",
	})
	http.Redirect(w, r, target, http.StatusFound)
}
