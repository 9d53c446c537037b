package answer

import (
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/text/unicode/norm"

	"github.com/josephgoksu/guidedmodules/models"
)

// Canonical converts v into its JSON data model (nil, bool, float64, string,
// []any, map[string]any) with every string in Unicode NFC. Stored values are
// always canonical so that comparison is structural.
func Canonical(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode answer value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode answer value: %w", err)
	}
	return nfc(out), nil
}

func nfc(v any) any {
	switch x := v.(type) {
	case string:
		return norm.NFC.String(x)
	case []any:
		for i := range x {
			x[i] = nfc(x[i])
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[norm.NFC.String(k)] = nfc(val)
		}
		return out
	}
	return v
}

// Same reports whether two effective records carry the same answer. Record
// identity, actor and time are ignored.
func Same(a, b *models.AnswerRecord) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Cleared != b.Cleared || a.Skipped != b.Skipped {
		return false
	}
	if !sameTasks(a.AnsweredByTasks, b.AnsweredByTasks) {
		return false
	}
	if !sameFile(a.AnsweredByFile, b.AnsweredByFile) {
		return false
	}
	av, err := Canonical(a.Value)
	if err != nil {
		return false
	}
	bv, err := Canonical(b.Value)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func sameTasks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameFile(a, b *models.FileRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SHA256 == b.SHA256 && a.Name == b.Name && a.ContentType == b.ContentType
}
