package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
)

// placeholderRE matches a named bind placeholder like {ci_ids} in a query
// template's text.
var placeholderRE = regexp.MustCompile(`\{(\w+)\}`)

// guardClauseRE matches one guarded clause of the form
// "AND col = ANY({param})" so it can be stripped wholesale when param is
// bound to an empty list (spec §4.3's empty-list guard).
func guardClauseRE(param string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\s+AND\s+[\w.]+\s*=\s*ANY\(\{` + regexp.QuoteMeta(param) + `\}\)`)
}

// Resolver selects named query assets and binds parameters into an
// executable, dialect-bound statement.
type Resolver struct {
	registry *asset.Registry
}

// NewResolver builds a Resolver over an Asset Registry.
func NewResolver(registry *asset.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve selects the query asset for (toolType, operation) under scope in
// tenantID's context, validates it for safety, and binds params into an
// executable Bound statement.
func (r *Resolver) Resolve(ctx context.Context, scope, toolType, operation, tenantID string, params map[string]interface{}) (*QueryDef, *Bound, error) {
	def, err := r.lookup(ctx, scope, toolType, operation, tenantID)
	if err != nil {
		return nil, nil, err
	}

	opts := DefaultValidationOptions()
	result := ValidateQuery(def.Statement, opts)
	if !result.Valid {
		return nil, nil, apperrors.Of(apperrors.CodeSQLBlocked, strings.Join(result.Violations, "; ")).
			WithDetails("operation", operation)
	}

	bound, err := Bind(def, params)
	if err != nil {
		return nil, nil, err
	}
	return def, bound, nil
}

// CheckSafety looks up the query asset for (toolType, operation) and runs
// it through ValidateQuery without binding parameters — the Plan
// Validator's pre-safety delegation (spec §4.7 step 7), run before a plan
// ever reaches the executor.
func (r *Resolver) CheckSafety(ctx context.Context, scope, toolType, operation, tenantID string) error {
	def, err := r.lookup(ctx, scope, toolType, operation, tenantID)
	if err != nil {
		return err
	}
	result := ValidateQuery(def.Statement, DefaultValidationOptions())
	if !result.Valid {
		return apperrors.Of(apperrors.CodeSQLBlocked, strings.Join(result.Violations, "; ")).
			WithDetails("operation", operation)
	}
	return nil
}

func (r *Resolver) lookup(ctx context.Context, scope, toolType, operation, tenantID string) (*QueryDef, error) {
	a, err := r.registry.Get(ctx, asset.Key{Type: asset.TypeQuery, Scope: scope, Name: toolType + "." + operation, TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.Of(apperrors.CodeQueryNotFound, "no published query for "+toolType+"."+operation)
	}
	var def QueryDef
	if err := json.Unmarshal(a.Content, &def); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeInvalidParams, "malformed query asset content", err)
	}
	return &def, nil
}

// Bind substitutes params into def.Statement without string
// interpolation: list-valued parameters bound into an IN/ANY clause
// expand to positional placeholders; guard parameters bound to an empty
// list cause their clause to be stripped instead.
func Bind(def *QueryDef, params map[string]interface{}) (*Bound, error) {
	statement := def.Statement

	guards := make(map[string]bool, len(def.GuardParams))
	for _, g := range def.GuardParams {
		guards[g] = true
	}

	// Strip guarded clauses whose bound value is an empty list, first —
	// before generic placeholder substitution sees them.
	for _, name := range def.GuardParams {
		if isEmptyList(params[name]) {
			statement = guardClauseRE(name).ReplaceAllString(statement, "")
		}
	}

	var args []interface{}
	var substErr error
	statement = placeholderRE.ReplaceAllStringFunc(statement, func(match string) string {
		name := placeholderRE.FindStringSubmatch(match)[1]
		value, present := params[name]
		if !present {
			if guards[name] {
				// Only an empty-list guard has its clause stripped above;
				// an absent guard parameter binds NULL.
				return bindPlaceholder(nil, &args)
			}
			substErr = apperrors.Of(apperrors.CodeInvalidParams, "missing bound parameter: "+name)
			return match
		}
		if guards[name] {
			return bindArrayPlaceholder(value, &args)
		}
		return bindPlaceholder(value, &args)
	})
	if substErr != nil {
		return nil, substErr
	}

	return &Bound{Statement: strings.TrimSpace(statement), Args: args}, nil
}

// bindPlaceholder appends value (or each element of a list value) to args
// and returns the dialect placeholder text to splice into the statement:
// a single "$N" for scalars, "$N,$N+1,..." for list params expanded into
// an IN(...)-shaped clause. Reserved for genuine IN(...) binding; a guard
// param's ANY({param}) clause must go through bindArrayPlaceholder instead,
// since ANY() takes one array-typed operand, not a parenthesized scalar list.
func bindPlaceholder(value interface{}, args *[]interface{}) string {
	list, isList := toInterfaceSlice(value)
	if !isList {
		*args = append(*args, value)
		return fmt.Sprintf("$%d", len(*args))
	}
	if len(list) == 0 {
		// An empty list renders as (NULL), so an IN clause built from
		// it matches no row.
		return "(NULL)"
	}
	placeholders := make([]string, len(list))
	for i, v := range list {
		*args = append(*args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return "(" + strings.Join(placeholders, ",") + ")"
}

// bindArrayPlaceholder binds value as a single dialect-native array literal
// via pq.Array, matching the ANY({param}) guard-clause shape's single
// array-typed operand — the same pq.Array idiom the teacher uses for every
// Postgres array-column bind (applications/jam/store_pg.go,
// internal/app/storage/postgres/store_admin.go). A non-list value still
// binds as a lone scalar placeholder.
func bindArrayPlaceholder(value interface{}, args *[]interface{}) string {
	list, isList := toInterfaceSlice(value)
	if !isList {
		*args = append(*args, value)
		return fmt.Sprintf("$%d", len(*args))
	}
	*args = append(*args, pq.Array(list))
	return fmt.Sprintf("$%d", len(*args))
}

func isEmptyList(v interface{}) bool {
	list, ok := toInterfaceSlice(v)
	return ok && len(list) == 0
}

func toInterfaceSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// CanonicalizeParams produces a deterministic JSON encoding of params with
// keys sorted, used by the Tool Executor's result-cache key derivation
// (spec §4.4 step 5: "sorted canonical inputs").
func CanonicalizeParams(params map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		Key   string      `json:"key"`
		Value interface{} `json:"value"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Value = params[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
