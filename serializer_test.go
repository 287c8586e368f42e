package koda

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestStringifyScalars(t *testing.T) {
	tests := []struct {
		name string
		v    *Value
		want string
	}{
		{"null", Null, "null"},
		{"true", NewBool(true), "true"},
		{"false", NewBool(false), "false"},
		{"int", NewInt(42), "42"},
		{"negative int", NewInt(-7), "-7"},
		{"float integral", NewFloat(1.0), "1.0"},
		{"float fraction", NewFloat(1.5), "1.5"},
		{"bare string", NewString("my-app"), "my-app"},
		{"quoted string with space", NewString("hello world"), `"hello world"`},
		{"string that looks like a keyword", NewString("true"), `"true"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(tt.v, StringifyOptions{})
			if err != nil {
				t.Fatalf("Stringify error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Stringify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringifyRejectsNonFiniteFloat(t *testing.T) {
	_, err := Stringify(NewFloat(math.NaN()), StringifyOptions{})
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("error = %v, want wrapping ErrUnsupportedValue", err)
	}
	_, err = Stringify(NewFloat(math.Inf(1)), StringifyOptions{})
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("error = %v, want wrapping ErrUnsupportedValue", err)
	}
}

func TestStringifyCompactObjectAndArray(t *testing.T) {
	obj := NewObject()
	obj.Set("b", NewInt(2))
	obj.Set("a", NewInt(1))
	got, err := Stringify(obj, StringifyOptions{})
	if err != nil {
		t.Fatalf("Stringify error: %v", err)
	}
	want := "{b: 2, a: 1}"
	if got != want {
		t.Errorf("Stringify() = %q, want %q", got, want)
	}

	arr := NewArray(NewInt(1), NewInt(2))
	got, err = Stringify(arr, StringifyOptions{})
	if err != nil {
		t.Fatalf("Stringify error: %v", err)
	}
	if got != "[1, 2]" {
		t.Errorf("Stringify() = %q, want [1, 2]", got)
	}
}

func TestStringifyEmptyContainers(t *testing.T) {
	if got, _ := Stringify(NewObject(), StringifyOptions{}); got != "{}" {
		t.Errorf("Stringify(empty object) = %q, want {}", got)
	}
	if got, _ := Stringify(NewArray(), StringifyOptions{}); got != "[]" {
		t.Errorf("Stringify(empty array) = %q, want []", got)
	}
}

func TestStringifyIndented(t *testing.T) {
	obj := NewObject()
	obj.Set("a", NewInt(1))
	got, err := Stringify(obj, StringifyOptions{Indent: "  "})
	if err != nil {
		t.Fatalf("Stringify error: %v", err)
	}
	want := "{\n  a: 1\n}"
	if got != want {
		t.Errorf("Stringify() = %q, want %q", got, want)
	}
}

func TestStringifyQuotesControlCharacters(t *testing.T) {
	got, err := Stringify(NewString("a\x01b"), StringifyOptions{})
	if err != nil {
		t.Fatalf("Stringify error: %v", err)
	}
	if !strings.Contains(got, `\u0001`) {
		t.Errorf("Stringify() = %q, want it to contain \\u0001", got)
	}
}

// Property 1: text round-trip for Values with no non-finite floats.
func TestTextRoundTrip(t *testing.T) {
	obj := NewObject()
	obj.Set("name", NewString("my-app"))
	obj.Set("version", NewInt(1))
	obj.Set("tags", NewArray(NewString("a"), NewString("b c")))
	obj.Set("ratio", NewFloat(0.5))
	obj.Set("nothing", Null)
	obj.Set("flag", NewBool(true))

	for _, opts := range []StringifyOptions{{}, {Indent: "  "}, {Indent: "\t"}} {
		text, err := Stringify(obj, opts)
		if err != nil {
			t.Fatalf("Stringify error: %v", err)
		}
		got, err := Parse(text, DefaultParseOptions())
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", text, err)
		}
		if !got.Equal(obj) {
			t.Errorf("round trip mismatch for opts %+v:\ntext: %s", opts, text)
		}
	}
}
