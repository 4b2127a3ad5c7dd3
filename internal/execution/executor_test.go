package execution

import (
	"context"
	"errors"
	"testing"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"copy-trader/internal/position"
	"copy-trader/internal/signal"
)

type mockOrderClient struct {
	calls   []string
	sides   []string
	amounts []float64
	prices  []float64
	fail    []error
}

func (m *mockOrderClient) nextErr() error {
	if len(m.fail) == 0 {
		return nil
	}
	err := m.fail[0]
	m.fail = m.fail[1:]
	return err
}

func (m *mockOrderClient) CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error) {
	m.calls = append(m.calls, "CreateMarketOrder")
	m.sides = append(m.sides, side)
	m.amounts = append(m.amounts, amount)
	return ccxt.Order{}, m.nextErr()
}

func (m *mockOrderClient) CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error) {
	m.calls = append(m.calls, "CreateLimitOrder")
	m.sides = append(m.sides, side)
	m.amounts = append(m.amounts, amount)
	m.prices = append(m.prices, price)
	return ccxt.Order{}, m.nextErr()
}

func TestPlaceEntry_MarketOrder(t *testing.T) {
	mock := &mockOrderClient{}
	exec := NewExecutor(mock, nil)

	order := EntryOrder{
		Market:   "BTC/USDC:USDC",
		Side:     signal.SideLong,
		Kind:     signal.OrderMarket,
		Amount:   0.5,
		Leverage: 5,
	}
	if err := exec.PlaceEntry(context.Background(), order); err != nil {
		t.Fatalf("PlaceEntry returned error: %v", err)
	}

	if len(mock.calls) != 1 || mock.calls[0] != "CreateMarketOrder" {
		t.Fatalf("unexpected calls: %v", mock.calls)
	}
	if mock.sides[0] != "buy" {
		t.Errorf("side: got %s want buy", mock.sides[0])
	}
	if mock.amounts[0] != 0.5 {
		t.Errorf("amount: got %v want 0.5", mock.amounts[0])
	}
}

func TestPlaceEntry_LimitOrder(t *testing.T) {
	mock := &mockOrderClient{}
	exec := NewExecutor(mock, nil)

	order := EntryOrder{
		Market: "ETH/USDC:USDC",
		Side:   signal.SideShort,
		Kind:   signal.OrderLimit,
		Amount: 2,
		Price:  2500,
	}
	if err := exec.PlaceEntry(context.Background(), order); err != nil {
		t.Fatalf("PlaceEntry returned error: %v", err)
	}

	if len(mock.calls) != 1 || mock.calls[0] != "CreateLimitOrder" {
		t.Fatalf("unexpected calls: %v", mock.calls)
	}
	if mock.sides[0] != "sell" {
		t.Errorf("side: got %s want sell", mock.sides[0])
	}
	if mock.prices[0] != 2500 {
		t.Errorf("price: got %v want 2500", mock.prices[0])
	}
}

func TestPlaceEntry_LimitOrderRequiresPrice(t *testing.T) {
	exec := NewExecutor(&mockOrderClient{}, nil)
	order := EntryOrder{Market: "ETH/USDC:USDC", Side: signal.SideLong, Kind: signal.OrderLimit, Amount: 1}
	if err := exec.PlaceEntry(context.Background(), order); err == nil {
		t.Fatalf("expected error for limit order without price")
	}
}

func TestClosePosition_OppositeSide(t *testing.T) {
	mock := &mockOrderClient{}
	exec := NewExecutor(mock, nil)

	order := CloseOrder{
		Market: "BTC/USDC:USDC",
		Side:   signal.SideLong,
		Amount: 0.3,
		Reason: position.CloseTakeProfit,
	}
	if err := exec.ClosePosition(context.Background(), order); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}

	if len(mock.calls) != 1 || mock.calls[0] != "CreateMarketOrder" {
		t.Fatalf("unexpected calls: %v", mock.calls)
	}
	if mock.sides[0] != "sell" {
		t.Errorf("closing a long must sell, got %s", mock.sides[0])
	}
}

func TestSubmit_NonRetryableFailsImmediately(t *testing.T) {
	mock := &mockOrderClient{fail: []error{errors.New("invalid signature")}}
	exec := NewExecutor(mock, nil)

	order := CloseOrder{Market: "BTC/USDC:USDC", Side: signal.SideShort, Amount: 1}
	if err := exec.ClosePosition(context.Background(), order); err == nil {
		t.Fatalf("expected error")
	}
	if len(mock.calls) != 1 {
		t.Errorf("non-retryable error must not retry, got %d calls", len(mock.calls))
	}
}

func TestSubmit_RetriesTransientError(t *testing.T) {
	mock := &mockOrderClient{fail: []error{
		&ccxt.Error{Type: ccxt.RateLimitExceededErrType},
	}}
	exec := NewExecutor(mock, nil)

	order := CloseOrder{Market: "BTC/USDC:USDC", Side: signal.SideShort, Amount: 1}
	if err := exec.ClosePosition(context.Background(), order); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}
	if len(mock.calls) != 2 {
		t.Errorf("expected 1 retry, got %d calls", len(mock.calls))
	}
}

func TestSimulatedExecutor_NeverTouchesExchange(t *testing.T) {
	sim := NewSimulatedExecutor(nil)

	entry := EntryOrder{Market: "BTC/USDC:USDC", Side: signal.SideLong, Kind: signal.OrderMarket, Amount: 1}
	if err := sim.PlaceEntry(context.Background(), entry); err != nil {
		t.Fatalf("PlaceEntry returned error: %v", err)
	}

	closeOrder := CloseOrder{Market: "BTC/USDC:USDC", Side: signal.SideLong, Amount: 1}
	if err := sim.ClosePosition(context.Background(), closeOrder); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}

	if err := sim.PlaceEntry(context.Background(), EntryOrder{Amount: 0}); err == nil {
		t.Errorf("expected error for invalid amount")
	}
}
