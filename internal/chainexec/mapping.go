package chainexec

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// resolvePath extracts a value from a step's recorded result following the
// "<step_id>.<path>" grammar of spec §4.5: plain dotted access, and a
// single "*" wildcard segment that fans out over a list, collecting the
// named field from every element. A missing intermediate field resolves
// to nil rather than erroring — callers decide whether that's valid.
func resolvePath(results map[string]StepResult, sourcePath string) interface{} {
	dot := strings.IndexByte(sourcePath, '.')
	if dot < 0 {
		return nil
	}
	stepID, path := sourcePath[:dot], sourcePath[dot+1:]
	res, ok := results[stepID]
	if !ok || res.Data == nil {
		return nil
	}

	raw, err := json.Marshal(res.Data)
	if err != nil {
		return nil
	}

	gjsonPath := toGJSONPath(path)
	value := gjson.GetBytes(raw, gjsonPath)
	if !value.Exists() {
		return nil
	}
	return value.Value()
}

// toGJSONPath rewrites the spec's "a.b.*.c" wildcard grammar into gjson's
// "a.b.#.c" array-mapping syntax: gjson's "#" over an array returns the
// named field from every element, matching the wildcard's fan-out
// semantics exactly.
func toGJSONPath(path string) string {
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		if seg == "*" {
			segments[i] = "#"
		}
	}
	return strings.Join(segments, ".")
}

// applyOutputMapping resolves every entry of mapping against results and
// returns a copy of params with the resolved values merged in, overriding
// any statically supplied value for the same target parameter.
func applyOutputMapping(params map[string]interface{}, mapping map[string]string, results map[string]StepResult) map[string]interface{} {
	if len(mapping) == 0 {
		return params
	}
	out := make(map[string]interface{}, len(params)+len(mapping))
	for k, v := range params {
		out[k] = v
	}
	for target, sourcePath := range mapping {
		out[target] = resolvePath(results, sourcePath)
	}
	return out
}
