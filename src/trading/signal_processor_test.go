package trading

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader/src/model"
)

type fakeOrderPlacer struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (f *fakeOrderPlacer) AddBuyOrder(symbol, stockName string, targetPrice, investmentAmount float64, autoExecute bool, orderType model.OrderType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	orderID := fmt.Sprintf("ORD_%d", len(f.orders)+1)
	f.orders = append(f.orders, symbol)
	return orderID, nil
}

func testConfig() Config {
	return Config{
		DefaultInvestmentAmount: 1000000,
		ConfirmationTimeout:     30 * time.Second,
		MaxPendingSignals:       10,
		MinSignalVolume:         100000,
		AutoExecutionEnabled:    false,
		SignalCleanupInterval:   10 * time.Second,
		ExecutionInterval:       2 * time.Second,
		MaxOrderRetries:         3,
		OrderRetryDelay:         time.Second,
		PositionInterval:        5 * time.Second,
		TargetProfitPercent:     3.0,
		StopLossPercent:         -2.0,
		MaxHoldHours:            6,
		ExitInterval:            time.Minute,
		MaxPositions:            10,
		DailyInvestmentLimit:    10000000,
	}
}

func tradingTime(hour, minute int) time.Time {
	return time.Date(2026, 3, 11, hour, minute, 0, 0, time.Local)
}

func TestProcessPriceUpdateBelowThreshold(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 1.5, 500000, 2.0)
	require.NoError(t, err)
	assert.Nil(t, signal)
	assert.Empty(t, p.ActiveSignals())
}

func TestProcessPriceUpdateCreatesSignal(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)
	p.now = func() time.Time { return tradingTime(16, 15) }

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, "005930", signal.Symbol)
	assert.Equal(t, 71200.0, signal.TriggerPrice)
	assert.Equal(t, 1000000.0, signal.InvestmentAmount)
	assert.False(t, signal.IsConfirmed)
	assert.Len(t, p.ActiveSignals(), 1)
}

func TestProcessPriceUpdateOneActiveSignalPerSymbol(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	first, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := p.ProcessPriceUpdate("005930", "Samsung", 71500, 3.0, 500000, 2.0)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Len(t, p.ActiveSignals(), 1)
}

func TestProcessPriceUpdateMaxPendingSignals(t *testing.T) {
	config := testConfig()
	config.MaxPendingSignals = 2
	p := NewSignalProcessor(config, &fakeOrderPlacer{}, nil)

	for i := 0; i < 2; i++ {
		signal, err := p.ProcessPriceUpdate(fmt.Sprintf("00000%d", i), "Stock", 10000, 3.0, 500000, 2.0)
		require.NoError(t, err)
		require.NotNil(t, signal)
	}

	overflow, err := p.ProcessPriceUpdate("009999", "Stock", 10000, 3.0, 500000, 2.0)
	require.NoError(t, err)
	assert.Nil(t, overflow)
}

func TestProcessPriceUpdateVolumeFloor(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 99999, 2.0)
	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestConfirmSignalQueuesOrder(t *testing.T) {
	placer := &fakeOrderPlacer{}
	p := NewSignalProcessor(testConfig(), placer, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, signal)

	require.NoError(t, p.ConfirmSignal(signal.SignalID, 0))

	assert.Empty(t, p.ActiveSignals())
	processed := p.ProcessedSignals()
	require.Len(t, processed, 1)
	assert.True(t, processed[0].IsConfirmed)
	assert.True(t, processed[0].IsProcessed)
	assert.Equal(t, "ORD_1", processed[0].OrderID)
	assert.Equal(t, []string{"005930"}, placer.orders)
}

func TestConfirmSignalOverridesInvestment(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)

	require.NoError(t, p.ConfirmSignal(signal.SignalID, 2000000))
	processed := p.ProcessedSignals()
	require.Len(t, processed, 1)
	assert.Equal(t, 2000000.0, processed[0].InvestmentAmount)
}

func TestConfirmSignalUnknownAndDouble(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	assert.Error(t, p.ConfirmSignal("missing", 0))

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)
	require.NoError(t, p.ConfirmSignal(signal.SignalID, 0))

	// Signal moved to processed; confirming again fails.
	assert.Error(t, p.ConfirmSignal(signal.SignalID, 0))
}

func TestConfirmSignalExpired(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	clock := tradingTime(16, 15)
	p.now = func() time.Time { return clock }

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)

	clock = clock.Add(31 * time.Second)
	assert.Error(t, p.ConfirmSignal(signal.SignalID, 0))
}

func TestConfirmSignalOrderFailureRetiresSignal(t *testing.T) {
	placer := &fakeOrderPlacer{err: errors.New("broker down")}
	p := NewSignalProcessor(testConfig(), placer, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)

	require.Error(t, p.ConfirmSignal(signal.SignalID, 0))

	// Confirmation is terminal even on order failure: the signal moves
	// to processed and no longer holds a pending slot.
	assert.Empty(t, p.ActiveSignals())
	processed := p.ProcessedSignals()
	require.Len(t, processed, 1)
	assert.False(t, processed[0].IsConfirmed)
	assert.True(t, processed[0].IsProcessed)
	assert.Contains(t, processed[0].TriggerReason, "ORDER_FAILED")
}

func TestRejectSignal(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)

	require.NoError(t, p.RejectSignal(signal.SignalID, "too risky"))
	assert.Empty(t, p.ActiveSignals())

	processed := p.ProcessedSignals()
	require.Len(t, processed, 1)
	assert.False(t, processed[0].IsConfirmed)
	assert.Contains(t, processed[0].TriggerReason, "too risky")

	assert.Error(t, p.RejectSignal(signal.SignalID, ""))
}

func TestCleanupExpiredSignals(t *testing.T) {
	p := NewSignalProcessor(testConfig(), &fakeOrderPlacer{}, nil)

	clock := tradingTime(16, 15)
	p.now = func() time.Time { return clock }

	_, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)

	clock = clock.Add(10 * time.Second)
	_, err = p.ProcessPriceUpdate("000660", "Hynix", 50000, 3.0, 500000, 2.0)
	require.NoError(t, err)

	// Only the first signal is past its window.
	clock = tradingTime(16, 15).Add(35 * time.Second)
	expired := p.CleanupExpiredSignals()

	assert.Equal(t, 1, expired)
	active := p.ActiveSignals()
	require.Len(t, active, 1)
	assert.Equal(t, "000660", active[0].Symbol)
}

func TestAutoConfirmInline(t *testing.T) {
	config := testConfig()
	config.AutoExecutionEnabled = true
	placer := &fakeOrderPlacer{}

	p := NewSignalProcessor(config, placer, nil)
	p.confirmDelay = 0

	signal, err := p.ProcessPriceUpdate("005930", "Samsung", 71200, 2.5, 500000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Empty(t, p.ActiveSignals())
	processed := p.ProcessedSignals()
	require.Len(t, processed, 1)
	assert.True(t, processed[0].IsConfirmed)
	assert.Equal(t, []string{"005930"}, placer.orders)
}
