package trading

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader/src/model"
)

type controllerFixture struct {
	controller *Controller
	signals    *SignalProcessor
	orders     *OrderExecutor
	positions  *PositionManager
	exits      *ExitStrategy
	broker     *fakePositionBroker
}

func newControllerFixture(config Config) *controllerFixture {
	broker := newFakePositionBroker()
	orders := NewOrderExecutor(config, broker, nil)
	signals := NewSignalProcessor(config, orders, nil)
	positions := NewPositionManager(config, broker, nil, nil)
	exits := NewExitStrategy(config, positions, nil)

	return &controllerFixture{
		controller: NewController(config, signals, orders, positions, exits, nil),
		signals:    signals,
		orders:     orders,
		positions:  positions,
		exits:      exits,
		broker:     broker,
	}
}

func TestProcessBuySignalBudgetGuard(t *testing.T) {
	f := newControllerFixture(testConfig())

	_, err := f.controller.ProcessBuySignal("005930", "Samsung", 71200, 2.5, 500000, 10000001)
	assert.ErrorContains(t, err, "daily investment limit")
}

func TestProcessBuySignalMaxPositionsGuard(t *testing.T) {
	config := testConfig()
	config.MaxPositions = 1
	f := newControllerFixture(config)

	_, err := f.positions.AddPosition("000660", "Hynix", 50000, 10, 0, 0, 0)
	require.NoError(t, err)

	_, err = f.controller.ProcessBuySignal("005930", "Samsung", 71200, 2.5, 500000, 0)
	assert.ErrorContains(t, err, "maximum positions")
}

func TestProcessBuySignalCreatesSignal(t *testing.T) {
	f := newControllerFixture(testConfig())

	signalID, err := f.controller.ProcessBuySignal("005930", "Samsung", 71200, 2.5, 500000, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, signalID)
	assert.Len(t, f.signals.ActiveSignals(), 1)

	// Below the default threshold nothing is created and no error is
	// returned.
	signalID, err = f.controller.ProcessBuySignal("000660", "Hynix", 50000, 1.5, 500000, 0)
	require.NoError(t, err)
	assert.Empty(t, signalID)
}

func TestExpiredSignalsFreePendingBudget(t *testing.T) {
	f := newControllerFixture(testConfig())

	clock := tradingTime(16, 5)
	f.signals.now = func() time.Time { return clock }

	for i := 0; i < 10; i++ {
		signalID, err := f.controller.ProcessBuySignal(fmt.Sprintf("10000%d", i), "Stock", 10000, 3.0, 500000, 0)
		require.NoError(t, err)
		require.NotEmpty(t, signalID)
	}

	// The active set is full and every signal is long past its window.
	clock = clock.Add(time.Hour)
	signalID, err := f.controller.ProcessBuySignal("005930", "Samsung", 71200, 2.5, 500000, 0)
	require.NoError(t, err)
	assert.Empty(t, signalID)

	f.controller.sweepExpiredSignals()
	assert.Empty(t, f.signals.ActiveSignals())

	signalID, err = f.controller.ProcessBuySignal("005930", "Samsung", 71200, 2.5, 500000, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, signalID)
}

func TestHandleFillOpensPositionAndChargesBudget(t *testing.T) {
	f := newControllerFixture(testConfig())

	actual := 10000.0
	f.controller.handleFill(model.BuyOrder{
		OrderID:     "BUY_TEST_1",
		Symbol:      "005930",
		StockName:   "Samsung",
		TargetPrice: 9900,
		ActualPrice: &actual,
		Quantity:    100,
	})

	positions := f.positions.ActivePositions()
	require.Len(t, positions, 1)
	assert.Equal(t, 10000.0, positions[0].EntryPrice)
	assert.Equal(t, int64(100), positions[0].Quantity)

	summary := f.controller.Summary()
	assert.InDelta(t, 1000000.0, summary.InvestmentLimits.CurrentDailyInvestment, 0.001)
	assert.InDelta(t, 9000000.0, summary.InvestmentLimits.RemainingBudget, 0.001)
	assert.Equal(t, 1, summary.DailyStats.TradesExecuted)
	assert.Equal(t, 1, summary.DailyStats.PositionsOpened)
}

func TestManualBuyChargesBudget(t *testing.T) {
	f := newControllerFixture(testConfig())

	orderID, err := f.controller.ManualBuy("005930", "Samsung", 10000, 1000000)
	require.NoError(t, err)

	order := f.orders.GetOrder(orderID)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusPending, order.Status)

	summary := f.controller.Summary()
	assert.InDelta(t, 1000000.0, summary.InvestmentLimits.CurrentDailyInvestment, 0.001)

	// The remaining budget caps further buys.
	_, err = f.controller.ManualBuy("000660", "Hynix", 50000, 9000001)
	assert.Error(t, err)
}

func TestManualSell(t *testing.T) {
	f := newControllerFixture(testConfig())

	positionID, err := f.positions.AddPosition("005930", "Samsung", 70000, 10, 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, f.controller.ManualSell(positionID))
	assert.Empty(t, f.positions.ActivePositions())

	closed := f.positions.ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, model.ExitReasonManual, closed[0].ExitReason)

	assert.Error(t, f.controller.ManualSell("missing"))
}

func TestRecordPositionClosedWinRate(t *testing.T) {
	f := newControllerFixture(testConfig())

	f.controller.RecordPositionClosed(15000)
	f.controller.RecordPositionClosed(-5000)
	f.controller.RecordPositionClosed(8000)

	stats := f.controller.Summary().DailyStats
	assert.Equal(t, 3, stats.PositionsClosed)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.InDelta(t, 18000.0, stats.TotalPnl, 0.001)
	assert.InDelta(t, 2.0/3.0*100, stats.WinRate, 0.001)
}

func TestEmergencyStop(t *testing.T) {
	f := newControllerFixture(testConfig())

	// A manual order stays pending until cancelled.
	orderID, err := f.orders.AddBuyOrder("005930", "Samsung", 10000, 1000000, false, model.OrderTypeMarket)
	require.NoError(t, err)
	_, err = f.positions.AddPosition("000660", "Hynix", 50000, 10, 0, 0, 0)
	require.NoError(t, err)

	f.controller.EmergencyStop("risk breach")

	order := f.orders.GetOrder(orderID)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	assert.Empty(t, f.positions.ActivePositions())
	closed := f.positions.ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, model.PositionStatusLiquidated, closed[0].Status)

	assert.False(t, f.controller.IsRunning())
}

func TestControllerStartStop(t *testing.T) {
	config := testConfig()
	config.ExecutionInterval = time.Hour
	config.PositionInterval = time.Hour
	config.ExitInterval = time.Hour

	f := newControllerFixture(config)
	f.controller.now = func() time.Time { return tradingTime(16, 30) }

	require.NoError(t, f.controller.Start())
	assert.True(t, f.controller.IsRunning())
	assert.True(t, f.orders.IsRunning())
	assert.True(t, f.positions.IsRunning())

	// After hours: the Day 2 exit strategy stays idle.
	assert.False(t, f.exits.IsRunning())

	assert.Error(t, f.controller.Start())

	f.controller.Stop()
	assert.False(t, f.controller.IsRunning())
	assert.False(t, f.orders.IsRunning())
}

func TestMarketPhase(t *testing.T) {
	f := newControllerFixture(testConfig())

	tests := []struct {
		hour, minute int
		want         string
	}{
		{8, 30, "pre_market"},
		{9, 0, "regular_hours"},
		{15, 30, "regular_hours"},
		{15, 45, "closed"},
		{16, 0, "after_hours"},
		{17, 40, "after_hours"},
		{18, 0, "closed"},
	}

	for _, tc := range tests {
		f.controller.now = func() time.Time { return tradingTime(tc.hour, tc.minute) }
		assert.Equal(t, tc.want, f.controller.MarketPhase(), "phase at %02d:%02d", tc.hour, tc.minute)
	}
}

// Full pipeline: price update to signal, confirmation to order, fill to
// position, manual close.
func TestSignalToPositionPipeline(t *testing.T) {
	f := newControllerFixture(testConfig())

	signalID, err := f.controller.ProcessBuySignal("005930", "Samsung", 10000, 2.5, 500000, 0)
	require.NoError(t, err)
	require.NotEmpty(t, signalID)

	require.NoError(t, f.signals.ConfirmSignal(signalID, 0))

	pending, _ := f.orders.AllOrders()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(100), pending[0].Quantity)

	f.orders.processPendingOrders()

	var fill model.BuyOrder
	select {
	case fill = <-f.orders.Fills():
	default:
		t.Fatal("expected a fill")
	}
	f.controller.handleFill(fill)

	positions := f.positions.ActivePositions()
	require.Len(t, positions, 1)
	assert.Equal(t, "005930", positions[0].Symbol)
	assert.Equal(t, int64(100), positions[0].Quantity)

	summary := f.controller.Summary()
	assert.Equal(t, 1, summary.DailyStats.TradesExecuted)
	assert.InDelta(t, 1000000.0, summary.InvestmentLimits.CurrentDailyInvestment, 0.001)

	require.NoError(t, f.controller.ManualSell(positions[0].PositionID))
	assert.Empty(t, f.positions.ActivePositions())
}
