package signal

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var testTime = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(Options{DefaultLeverage: 2})
}

func TestParse_SingleLineGrammars(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		symbol  string
		side    Side
		kind    OrderKind
		entries []float64
	}{
		{"buy now", "BUY NOW BTC", "BTC", SideLong, OrderMarket, nil},
		{"market bare default symbol", "MARKET LONG", "BTC", SideLong, OrderMarket, nil},
		{"market bare with symbol", "market short eth", "ETH", SideShort, OrderMarket, nil},
		{"kind verb at", "LIMIT BUY ETH AT 2500", "ETH", SideLong, OrderLimit, []float64{2500}},
		{"kind verb separator", "market sell sol @ 150", "SOL", SideShort, OrderMarket, []float64{150}},
		{"verb first", "Long BTC @ 64000", "BTC", SideLong, OrderLimit, []float64{64000}},
		{"symbol first", "BTC short 64000", "BTC", SideShort, OrderLimit, []float64{64000}},
		{"position verb", "POSITION: LONG ETH 2500", "ETH", SideLong, OrderLimit, []float64{2500}},
		{"ladder entries", "buy sol at 150/148/145", "SOL", SideLong, OrderLimit, []float64{150, 148, 145}},
		{"k suffix", "buy btc at 64k", "BTC", SideLong, OrderLimit, []float64{64000}},
	}

	p := newTestParser()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent, err := p.Parse(tc.text, testTime)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tc.text, err)
			}
			if intent.Symbol != tc.symbol {
				t.Errorf("symbol: got %s want %s", intent.Symbol, tc.symbol)
			}
			if intent.Side != tc.side {
				t.Errorf("side: got %s want %s", intent.Side, tc.side)
			}
			if intent.OrderKind != tc.kind {
				t.Errorf("order kind: got %s want %s", intent.OrderKind, tc.kind)
			}
			if len(tc.entries) == 0 && len(intent.Entries) != 0 {
				t.Errorf("expected no entries, got %v", intent.Entries)
			}
			if len(tc.entries) > 0 && !reflect.DeepEqual(intent.Entries, tc.entries) {
				t.Errorf("entries: got %v want %v", intent.Entries, tc.entries)
			}
			if intent.SourceTimestamp != testTime {
				t.Errorf("source timestamp not preserved")
			}
		})
	}
}

// 所有动词与分隔符组合都应解析出同一意图。
func TestParse_VerbSeparatorGrid(t *testing.T) {
	verbs := map[string]Side{
		"BUY":   SideLong,
		"LONG":  SideLong,
		"SELL":  SideShort,
		"SHORT": SideShort,
	}
	seps := []string{"AT ", "@ ", ": ", ""}

	p := newTestParser()
	for verb, side := range verbs {
		for _, sep := range seps {
			text := verb + " BTC " + sep + "64000"
			intent, err := p.Parse(text, testTime)
			if err != nil {
				t.Errorf("Parse(%q) returned error: %v", text, err)
				continue
			}
			if intent.Symbol != "BTC" || intent.Side != side {
				t.Errorf("Parse(%q): got %s %s", text, intent.Symbol, intent.Side)
			}
			if len(intent.Entries) != 1 || intent.Entries[0] != 64000 {
				t.Errorf("Parse(%q): entries %v", text, intent.Entries)
			}
		}
	}
}

func TestParse_MultiLineBlock(t *testing.T) {
	text := "🚀 LONG BTC\nEntry: 64000/63500\nSL: 62000\nTP1: 65000\nTP2: 66000\nLeverage: 10x"

	intent, err := newTestParser().Parse(text, testTime)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if intent.Symbol != "BTC" || intent.Side != SideLong {
		t.Errorf("unexpected head: %s %s", intent.Symbol, intent.Side)
	}
	if !reflect.DeepEqual(intent.Entries, []float64{64000, 63500}) {
		t.Errorf("entries: got %v", intent.Entries)
	}
	if intent.StopLoss != 62000 {
		t.Errorf("stop loss: got %v want 62000", intent.StopLoss)
	}
	if intent.Leverage != 10 {
		t.Errorf("leverage: got %v want 10", intent.Leverage)
	}
	if len(intent.TakeProfits) != 2 {
		t.Fatalf("expected 2 take profits, got %v", intent.TakeProfits)
	}
	if intent.TakeProfits[0].Price != 65000 || intent.TakeProfits[1].Price != 66000 {
		t.Errorf("tp prices: got %v", intent.TakeProfits)
	}
	for _, tp := range intent.TakeProfits {
		if math.Abs(tp.Fraction-0.5) > FractionSumEpsilon {
			t.Errorf("expected equal fractions, got %v", intent.TakeProfits)
		}
	}
}

// 补充行的顺序不影响结果。
func TestParse_SupplementOrderIndependent(t *testing.T) {
	a := "TP: 65000\nSL: 62000\nLONG BTC @ 64000"
	b := "LONG BTC @ 64000\nSL: 62000\nTP: 65000"

	p := newTestParser()
	ia, err := p.Parse(a, testTime)
	if err != nil {
		t.Fatalf("Parse(a) returned error: %v", err)
	}
	ib, err := p.Parse(b, testTime)
	if err != nil {
		t.Fatalf("Parse(b) returned error: %v", err)
	}

	if ia.StopLoss != ib.StopLoss || len(ia.TakeProfits) != len(ib.TakeProfits) {
		t.Errorf("line order changed the result: %+v vs %+v", ia, ib)
	}
}

func TestParse_ConfiguredFractions(t *testing.T) {
	p := NewParser(Options{DefaultLeverage: 2, TPFractions: "50/30/20"})
	intent, err := p.Parse("LONG BTC @ 64000\nTP: 65000/66000/67000", testTime)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(intent.TakeProfits) != 3 {
		t.Fatalf("expected 3 take profits, got %d", len(intent.TakeProfits))
	}

	want := []float64{0.5, 0.3, 0.2}
	var sum float64
	for i, tp := range intent.TakeProfits {
		if math.Abs(tp.Fraction-want[i]) > FractionSumEpsilon {
			t.Errorf("fraction %d: got %v want %v", i, tp.Fraction, want[i])
		}
		sum += tp.Fraction
	}
	if sum != 1.0 {
		t.Errorf("fractions must sum to exactly 1.0, got %.17f", sum)
	}
}

func TestParse_FractionCountMismatchFallsBack(t *testing.T) {
	p := NewParser(Options{DefaultLeverage: 2, TPFractions: "50/50"})
	intent, err := p.Parse("LONG BTC @ 64000\nTP: 65000/66000/67000", testTime)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(intent.TakeProfits) != 3 {
		t.Fatalf("expected 3 take profits, got %d", len(intent.TakeProfits))
	}
	if math.Abs(intent.TakeProfits[0].Fraction-1.0/3) > FractionSumEpsilon {
		t.Errorf("expected equal fallback, got %v", intent.TakeProfits)
	}
}

func TestParse_DefaultLeverage(t *testing.T) {
	intent, err := newTestParser().Parse("LONG BTC @ 64000", testTime)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if intent.Leverage != 2 {
		t.Errorf("expected default leverage 2, got %v", intent.Leverage)
	}
}

func TestParse_InlineLeverage(t *testing.T) {
	intent, err := newTestParser().Parse("BUY BTC AT 64000 10X", testTime)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if intent.Leverage != 10 {
		t.Errorf("expected leverage 10, got %v", intent.Leverage)
	}
}

func TestParse_NoSignal(t *testing.T) {
	cases := []string{
		"gm everyone, have a great day",
		"the market looks crazy today",
		"",
		"🔥🔥🔥",
	}
	p := newTestParser()
	for _, text := range cases {
		if _, err := p.Parse(text, testTime); !IsNoSignal(err) {
			t.Errorf("Parse(%q): expected ErrNoSignal, got %v", text, err)
		}
	}
}

func TestParse_Diagnostics(t *testing.T) {
	cases := []struct {
		text   string
		reason ParseReason
	}{
		{"LONG INCOMING GET READY TO BUY", ReasonMissingPrice},
		{"SELL AT NOW", ReasonMissingPrice},
		{"SHORT 100 IS THE TARGET FOR ETH", ReasonAmbiguousGrammar},
	}

	p := newTestParser()
	for _, tc := range cases {
		_, err := p.Parse(tc.text, testTime)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q): expected *ParseError, got %v", tc.text, err)
			continue
		}
		if perr.Reason != tc.reason {
			t.Errorf("Parse(%q): reason got %s want %s", tc.text, perr.Reason, tc.reason)
		}
	}
}
