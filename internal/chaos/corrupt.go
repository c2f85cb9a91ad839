package chaos

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// CorruptJSONBody implements spec.md §4.4's "safe" corruption strategy: it
// never throws, and for a non-empty top-level array or object it mutates
// exactly one top-level element, chosen uniformly between remove and
// nullify. Primitives, parse failures, and empty containers are left
// unchanged with a reason tag.
func CorruptJSONBody(body []byte) ([]byte, string) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body, "corrupt_json:skipped(reason=parse_error)"
	}

	switch val := v.(type) {
	case []any:
		return corruptArray(body, val)
	case map[string]any:
		return corruptObject(body, val)
	default:
		return body, "corrupt_json:skipped(reason=primitive_value)"
	}
}

func corruptArray(orig []byte, arr []any) ([]byte, string) {
	if len(arr) == 0 {
		return orig, "corrupt_json:skipped(reason=empty_array)"
	}
	i := rand.Intn(len(arr))
	if rand.Intn(2) == 0 {
		out := append(append([]any{}, arr[:i]...), arr[i+1:]...)
		b, err := json.Marshal(out)
		if err != nil {
			return orig, "corrupt_json:skipped(reason=parse_error)"
		}
		return b, fmt.Sprintf("corrupt_json:removed_index:%d", i)
	}
	out := append([]any{}, arr...)
	out[i] = nil
	b, err := json.Marshal(out)
	if err != nil {
		return orig, "corrupt_json:skipped(reason=parse_error)"
	}
	return b, fmt.Sprintf("corrupt_json:null_index:%d", i)
}

func corruptObject(orig []byte, obj map[string]any) ([]byte, string) {
	if len(obj) == 0 {
		return orig, "corrupt_json:skipped(reason=empty_object)"
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	k := keys[rand.Intn(len(keys))]

	out := make(map[string]any, len(obj))
	for kk, vv := range obj {
		out[kk] = vv
	}

	if rand.Intn(2) == 0 {
		delete(out, k)
		b, err := json.Marshal(out)
		if err != nil {
			return orig, "corrupt_json:skipped(reason=parse_error)"
		}
		return b, fmt.Sprintf("corrupt_json:removed_key:%s", k)
	}
	out[k] = nil
	b, err := json.Marshal(out)
	if err != nil {
		return orig, "corrupt_json:skipped(reason=parse_error)"
	}
	return b, fmt.Sprintf("corrupt_json:null_value:%s", k)
}
