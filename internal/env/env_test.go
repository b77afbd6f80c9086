package env

import (
	"reflect"
	"testing"
)

func TestMergeOverridesTakePrecedence(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root"}
	out := Merge(base, []string{"HOME=/custom", "FOO=bar"})

	want := map[string]string{"PATH": "/usr/bin", "HOME": "/custom", "FOO": "bar"}
	got := map[string]string{}
	for _, kv := range out {
		parts := splitOnce(kv)
		got[parts[0]] = parts[1]
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %v, want %v", got, want)
	}
}

func TestMergeNoOverridesCopiesBase(t *testing.T) {
	base := []string{"A=1"}
	out := Merge(base, nil)
	if !reflect.DeepEqual(out, base) {
		t.Fatalf("Merge() = %v, want %v", out, base)
	}
	out[0] = "mutated"
	if base[0] == "mutated" {
		t.Fatalf("Merge must not alias the base slice")
	}
}

func splitOnce(kv string) [2]string {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return [2]string{kv[:i], kv[i+1:]}
		}
	}
	return [2]string{kv, ""}
}
