package resolver

import (
	"strings"
	"testing"
)

func TestValidateQueryBlocksWriteKeywords(t *testing.T) {
	cases := map[string]string{
		"DELETE FROM widgets WHERE id = 1": "DML write keyword",
		"INSERT INTO widgets VALUES (1)":   "DML write keyword",
		"DROP TABLE widgets":               "DDL keyword",
		"GRANT SELECT ON widgets TO bob":   "DCL keyword",
		"BEGIN; SELECT 1; COMMIT;":         "TCL keyword",
	}
	for query, wantSubstr := range cases {
		res := ValidateQuery(query, DefaultValidationOptions())
		if res.Valid {
			t.Errorf("query %q: expected a violation", query)
			continue
		}
		found := false
		for _, v := range res.Violations {
			if strings.Contains(v, wantSubstr) {
				found = true
			}
		}
		if !found {
			t.Errorf("query %q: violations = %v, want one containing %q", query, res.Violations, wantSubstr)
		}
	}
}

func TestValidateQueryAllowsPlainSelect(t *testing.T) {
	res := ValidateQuery("SELECT id, name FROM widgets WHERE tenant_id = $1", DefaultValidationOptions())
	if !res.Valid {
		t.Fatalf("expected a read-only SELECT to pass, got violations %v", res.Violations)
	}
}

func TestValidateQueryIgnoresKeywordsInComments(t *testing.T) {
	query := "SELECT 1 -- DROP TABLE widgets\n/* DELETE FROM widgets */"
	res := ValidateQuery(query, DefaultValidationOptions())
	if !res.Valid {
		t.Fatalf("expected keywords inside comments to be stripped, got violations %v", res.Violations)
	}
}

func TestContainsDangerousKeyword(t *testing.T) {
	if !ContainsDangerousKeyword("DROP TABLE widgets") {
		t.Error("expected DROP to be flagged dangerous")
	}
	if ContainsDangerousKeyword("SELECT * FROM widgets") {
		t.Error("expected a plain SELECT to not be flagged dangerous")
	}
}

func TestNeedsTenantReview(t *testing.T) {
	if !NeedsTenantReview("SELECT * FROM widgets") {
		t.Error("a query with no WHERE clause should need tenant review")
	}
	if NeedsTenantReview("SELECT * FROM widgets WHERE id = 1") {
		t.Error("a query with any WHERE clause should not need tenant review, even without a tenant filter")
	}
}
