package asset

import (
	"encoding/json"
	"net/url"
	"strings"
)

// sensitivePattern substrings mark a field name as credential-shaped
// (spec §3 Tool invariants / §8 Plaintext credential detection), matched
// case-insensitively against the field name.
var sensitivePatterns = []string{"password", "secret", "token", "api_key", "apikey", "credential"}

// allowedCredentialPrefixes are the only acceptable forms for a
// credential-shaped field's value: an environment reference, a secret
// store reference, or a template placeholder resolved later.
var allowedCredentialPrefixes = []string{"env:", "vault:"}

// isSensitiveFieldName reports whether name matches the credential
// sensitive-pattern set, case-insensitively.
func isSensitiveFieldName(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isAllowedCredentialValue reports whether value is a reference (env:/
// vault:) or a template placeholder ("{...}") rather than plaintext.
func isAllowedCredentialValue(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	for _, p := range allowedCredentialPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

// FindPlaintextCredentials walks a JSON object's direct string fields and
// returns the names of any credential-shaped field whose value is not a
// reference or placeholder. devMode, when true, exempts a field literally
// named "password" — the source's documented dev_mode/password
// inconsistency (see DESIGN.md Open Question decisions): every other
// sensitive field is still rejected even in dev_mode.
func FindPlaintextCredentials(content json.RawMessage, devMode bool) ([]string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, err
	}
	var violations []string
	for name, v := range fields {
		str, ok := v.(string)
		if !ok || !isSensitiveFieldName(name) {
			continue
		}
		if isAllowedCredentialValue(str) {
			continue
		}
		if devMode && strings.EqualFold(name, "password") {
			continue
		}
		violations = append(violations, name)
	}
	return violations, nil
}

// ValidateHTTPToolURL reports whether rawURL is a well-formed absolute
// URL, per the Tool invariant "valid URL form for HTTP".
func ValidateHTTPToolURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
