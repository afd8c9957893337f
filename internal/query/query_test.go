package query

import (
	"reflect"
	"testing"
)

func TestNew(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"drops stop words", "What is the history of the Roman Empire?", []string{"history", "roman", "empire"}},
		{"lowercases and splits punctuation", "Go, Rust & WebAssembly!", []string{"go", "rust", "webassembly"}},
		{"dedups preserving first occurrence", "cats and cats and dogs", []string{"cats", "dogs"}},
		{"empty query yields no terms", "   ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := New(tc.raw)
			if got.Raw != tc.raw {
				t.Fatalf("Raw = %q, want %q", got.Raw, tc.raw)
			}
			if len(got.Terms) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got.Terms, tc.want) {
				t.Fatalf("Terms = %v, want %v", got.Terms, tc.want)
			}
		})
	}
}
