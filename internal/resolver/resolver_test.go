package resolver

import (
	"strings"
	"testing"
)

func TestBindStripsGuardedClauseOnEmptyList(t *testing.T) {
	def := &QueryDef{
		Statement:   "SELECT * FROM assets WHERE tenant_id = {tenant_id} AND ci_id = ANY({ci_ids})",
		GuardParams: []string{"ci_ids"},
	}
	bound, err := Bind(def, map[string]interface{}{"tenant_id": "t1", "ci_ids": []interface{}{}})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if strings.Contains(bound.Statement, "ANY") {
		t.Fatalf("statement = %q, want the guarded ANY(...) clause stripped", bound.Statement)
	}
}

func TestBindKeepsGuardedClauseOnNonEmptyList(t *testing.T) {
	def := &QueryDef{
		Statement:   "SELECT * FROM assets WHERE ci_id = ANY({ci_ids})",
		GuardParams: []string{"ci_ids"},
	}
	bound, err := Bind(def, map[string]interface{}{"ci_ids": []interface{}{"ci-1", "ci-2"}})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	// ANY() takes a single array-typed operand, so a guarded list binds as
	// one pq.Array value behind one placeholder, not one placeholder per
	// element the way an IN(...) clause would.
	if len(bound.Args) != 1 {
		t.Fatalf("Args = %v, want a single array-typed bind value", bound.Args)
	}
	if !strings.Contains(bound.Statement, "ANY($1)") {
		t.Fatalf("statement = %q, want a lone placeholder inside ANY(...)", bound.Statement)
	}
}

func TestBindMissingParamErrors(t *testing.T) {
	def := &QueryDef{Statement: "SELECT * FROM assets WHERE id = {id}"}
	if _, err := Bind(def, map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for a missing bound parameter")
	}
}

func TestCanonicalizeParamsIsOrderIndependent(t *testing.T) {
	a, err := CanonicalizeParams(map[string]interface{}{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("CanonicalizeParams: %v", err)
	}
	b, err := CanonicalizeParams(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("CanonicalizeParams: %v", err)
	}
	if a != b {
		t.Fatalf("CanonicalizeParams not order-independent: %q != %q", a, b)
	}
}

func TestCanonicalizeParamsDistinguishesDifferentValues(t *testing.T) {
	a, _ := CanonicalizeParams(map[string]interface{}{"a": 1})
	b, _ := CanonicalizeParams(map[string]interface{}{"a": 2})
	if a == b {
		t.Fatal("expected different param values to canonicalize differently")
	}
}
