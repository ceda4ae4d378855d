package resolver

import (
	"regexp"
	"strings"
)

// keywordType classifies one SQL keyword for the safety validator,
// mirroring the Python original's SQLKeywordType enum.
type keywordType string

const (
	keywordDDL       keywordType = "DDL"
	keywordDMLWrite  keywordType = "DML_WRITE"
	keywordDCL       keywordType = "DCL"
	keywordTCL       keywordType = "TCL"
	keywordDangerous keywordType = "DANGEROUS"
)

// Exact keyword sets from original_source's query_safety.py.
var (
	ddlKeywords = map[string]bool{
		"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true, "RENAME": true, "COMMENT": true,
	}
	dmlWriteKeywords = map[string]bool{
		"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "CALL": true, "EXECUTE": true, "EXEC": true,
	}
	dclKeywords = map[string]bool{
		"GRANT": true, "REVOKE": true,
	}
	tclKeywords = map[string]bool{
		"COMMIT": true, "ROLLBACK": true, "SAVEPOINT": true, "START": true, "BEGIN": true, "END": true, "TRANSACTION": true,
	}
	dangerousKeywords = map[string]bool{
		"DROP": true, "TRUNCATE": true, "DELETE": true, "EXEC": true, "EXECUTE": true,
	}
)

var (
	lineCommentRE  = regexp.MustCompile(`(?m)--.*?$`)
	blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
	wordRE         = regexp.MustCompile(`\b\w+\b`)
)

// NormalizeSQL strips comments and collapses whitespace, matching
// QuerySafetyValidator.normalize_sql.
func NormalizeSQL(query string) string {
	query = lineCommentRE.ReplaceAllString(query, "")
	query = blockCommentRE.ReplaceAllString(query, "")
	query = whitespaceRE.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

// ExtractKeywords returns every word in query, uppercased, after
// normalization.
func ExtractKeywords(query string) []string {
	normalized := NormalizeSQL(query)
	words := wordRE.FindAllString(normalized, -1)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToUpper(w)
	}
	return out
}

// ValidationResult is the outcome of ValidateQuery.
type ValidationResult struct {
	Valid       bool
	Violations  []string
	QueryLength int
}

// ValidationOptions selects which keyword families ValidateQuery enforces.
type ValidationOptions struct {
	EnforceReadOnly bool
	BlockDDL        bool
	BlockDCL        bool
	BlockTCL        bool
}

// DefaultValidationOptions enforces every family, matching this module's
// read-only-by-default posture for database_query reader tools.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{EnforceReadOnly: true, BlockDDL: true, BlockDCL: true, BlockTCL: true}
}

// ValidateQuery runs the full safety check described in spec §4.3 and
// original_source's query_safety.py. It checks every enforced keyword
// family and reports at most one violation per family: the first keyword
// found in it.
func ValidateQuery(query string, opts ValidationOptions) ValidationResult {
	var violations []string
	keywords := ExtractKeywords(query)

	if opts.EnforceReadOnly {
		for _, k := range keywords {
			if dmlWriteKeywords[k] {
				violations = append(violations, "DML write keyword '"+k+"' violates read-only constraint")
				break
			}
		}
	}
	if opts.BlockDDL {
		for _, k := range keywords {
			if ddlKeywords[k] {
				violations = append(violations, "DDL keyword '"+k+"' is blocked")
				break
			}
		}
	}
	if opts.BlockDCL {
		for _, k := range keywords {
			if dclKeywords[k] {
				violations = append(violations, "DCL keyword '"+k+"' is blocked")
				break
			}
		}
	}
	if opts.BlockTCL {
		for _, k := range keywords {
			if tclKeywords[k] {
				violations = append(violations, "TCL keyword '"+k+"' is blocked")
				break
			}
		}
	}

	return ValidationResult{
		Valid:       len(violations) == 0,
		Violations:  violations,
		QueryLength: len(query),
	}
}

// ContainsDangerousKeyword reports whether query contains any keyword in
// the DANGEROUS set (spec §8's explicit boundary-behavior list plus
// EXEC/EXECUTE from the original). Nothing outside this package's tests
// calls it.
func ContainsDangerousKeyword(query string) bool {
	for _, k := range ExtractKeywords(query) {
		if dangerousKeywords[k] {
			return true
		}
	}
	return false
}

// NeedsTenantReview reports whether query has no WHERE clause at all —
// informational only, never a blocker (mirrors check_tenant_isolation's
// "needs_review" semantics: a WHERE clause lacking a tenant filter is
// still valid, only a missing WHERE clause is flagged).
func NeedsTenantReview(query string) bool {
	return !strings.Contains(strings.ToUpper(query), "WHERE")
}
