package asset

import (
	"encoding/json"
	"testing"
)

func TestFindPlaintextCredentialsFlagsBareSecrets(t *testing.T) {
	content := json.RawMessage(`{"password":"hunter2","api_key":"sk-live-abc","host":"db.internal"}`)
	violations, err := FindPlaintextCredentials(content, false)
	if err != nil {
		t.Fatalf("FindPlaintextCredentials: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want 2 (password, api_key)", violations)
	}
}

func TestFindPlaintextCredentialsAllowsReferencesAndPlaceholders(t *testing.T) {
	content := json.RawMessage(`{"password":"env:DB_PASSWORD","secret":"vault:secret/data/ops#token","token":"{{.Token}}"}`)
	violations, err := FindPlaintextCredentials(content, false)
	if err != nil {
		t.Fatalf("FindPlaintextCredentials: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}

func TestFindPlaintextCredentialsDevModeExemptsOnlyPassword(t *testing.T) {
	content := json.RawMessage(`{"password":"hunter2","api_key":"sk-live-abc"}`)
	violations, err := FindPlaintextCredentials(content, true)
	if err != nil {
		t.Fatalf("FindPlaintextCredentials: %v", err)
	}
	if len(violations) != 1 || violations[0] != "api_key" {
		t.Fatalf("violations = %v, want exactly [api_key]", violations)
	}
}

func TestFindPlaintextCredentialsIgnoresNonStringFields(t *testing.T) {
	content := json.RawMessage(`{"password":true,"retry_count":3}`)
	violations, err := FindPlaintextCredentials(content, false)
	if err != nil {
		t.Fatalf("FindPlaintextCredentials: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none for non-string field values", violations)
	}
}

func TestValidateHTTPToolURL(t *testing.T) {
	cases := map[string]bool{
		"https://api.internal/v1/widgets": true,
		"http://api.internal":             true,
		"/v1/widgets":                     false,
		"not a url at all":                false,
		"ftp://host":                      true,
	}
	for url, want := range cases {
		if got := ValidateHTTPToolURL(url); got != want {
			t.Errorf("ValidateHTTPToolURL(%q) = %v, want %v", url, got, want)
		}
	}
}
