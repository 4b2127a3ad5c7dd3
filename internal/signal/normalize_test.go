package signal

import (
	"reflect"
	"testing"
)

func TestNormalize_StripsDecorations(t *testing.T) {
	lines := Normalize("🚀🚀 **Long** BTC!!! \n\n  Entry:   64000 ")
	want := []string{"LONG BTC", "ENTRY: 64000"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("unexpected lines: got %v want %v", lines, want)
	}
}

func TestNormalize_KeepsStructuralPunct(t *testing.T) {
	lines := Normalize("tp: $65,000 / $66000 @ 10x")
	if len(lines) != 1 {
		t.Fatalf("expected single line, got %v", lines)
	}
	if lines[0] != "TP: $65,000 / $66000 @ 10X" {
		t.Errorf("unexpected line: %q", lines[0])
	}
}

func TestNormalize_ExpandsSuffixes(t *testing.T) {
	cases := map[string]string{
		"buy btc at 64k":   "BUY BTC AT 64000",
		"target 1.5M":      "TARGET 1500000",
		"leverage 5x":      "LEVERAGE 5X",
		"entry 64.5K deep": "ENTRY 64500 DEEP",
	}
	for in, want := range cases {
		lines := Normalize(in)
		if len(lines) != 1 || lines[0] != want {
			t.Errorf("Normalize(%q) = %v, want [%q]", in, lines, want)
		}
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if lines := Normalize("  \n\t\n🔥🔥🔥\n"); len(lines) != 0 {
		t.Fatalf("expected no lines, got %v", lines)
	}
}
