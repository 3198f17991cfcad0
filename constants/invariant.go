package constants

const (
	// rate limiting (per client IP, across all forms)
	RATE_LIMIT_MAX_ATTEMPTS  = 10
	RATE_LIMIT_DECAY_SECONDS = 3600

	// spam detection
	DEFAULT_MAX_URLS = 1

	// outbound notification calls must never stall the intake pipeline
	NOTIFY_TIMEOUT_SECONDS = 10

	// forms get an opaque URL-safe hash at creation time
	FORM_HASH_BYTES = 8

	MAX_TEXT_FIELD_LENGTH = 1000
	MAX_URL_FIELD_LENGTH  = 2048
)

// Conventional honeypot field names. These act as a fallback when a form
// has no non-honeypot field configured under the same name.
var FALLBACK_HONEYPOT_FIELDS = []string{"website", "phone_2"}

// Keys dropped from notifications unless the form claims the name for a
// real field.
var INTERNAL_FIELDS = []string{"_token", "website", "phone_2"}
