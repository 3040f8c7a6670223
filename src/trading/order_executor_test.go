package trading

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader/src/connectors"
	"daytrader/src/model"
)

type fakeBroker struct {
	mu        sync.Mutex
	buyCalls   int
	sellCalls  int
	buyResult  *connectors.OrderResult
	buyErr     error
	sellResult *connectors.OrderResult
	sellErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		buyResult:  &connectors.OrderResult{Successful: true, KISOrderID: "KIS001"},
		sellResult: &connectors.OrderResult{Successful: true, KISOrderID: "KIS002"},
	}
}

func (f *fakeBroker) PlaceBuyOrder(symbol string, quantity int64, price float64, orderType string) (*connectors.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyCalls++
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	return f.buyResult, nil
}

func (f *fakeBroker) PlaceSellOrder(symbol string, quantity int64, price float64, orderType string) (*connectors.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sellCalls++
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	return f.sellResult, nil
}

func (f *fakeBroker) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyCalls, f.sellCalls
}

func TestAddBuyOrderQuantity(t *testing.T) {
	e := NewOrderExecutor(testConfig(), newFakeBroker(), nil)

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	order := e.GetOrder(orderID)
	require.NotNil(t, order)
	assert.Equal(t, int64(100), order.Quantity)
	assert.Equal(t, model.OrderStatusPending, order.Status)
}

func TestAddBuyOrderRejectsDustQuantity(t *testing.T) {
	e := NewOrderExecutor(testConfig(), newFakeBroker(), nil)

	_, err := e.AddBuyOrder("005930", "Samsung", 2000000, 1000000, true, model.OrderTypeMarket)
	assert.Error(t, err)

	_, err = e.AddBuyOrder("005930", "Samsung", 0, 1000000, true, model.OrderTypeMarket)
	assert.Error(t, err)
}

func TestCancelOrder(t *testing.T) {
	e := NewOrderExecutor(testConfig(), newFakeBroker(), nil)

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder(orderID))

	order := e.GetOrder(orderID)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	// Cancelled order left the pending set; a second cancel fails.
	assert.Error(t, e.CancelOrder(orderID))
	assert.Error(t, e.CancelOrder("missing"))
}

func TestCancelOrderAlreadyCompleted(t *testing.T) {
	e := NewOrderExecutor(testConfig(), newFakeBroker(), nil)
	e.now = func() time.Time { return tradingTime(16, 20) }

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)
	e.processPendingOrders()

	err = e.CancelOrder(orderID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cancel")
	assert.Contains(t, err.Error(), string(model.OrderStatusCompleted))
}

func TestProcessPendingOrdersCompletesOrder(t *testing.T) {
	broker := newFakeBroker()
	e := NewOrderExecutor(testConfig(), broker, nil)
	e.now = func() time.Time { return tradingTime(16, 20) }

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	e.processPendingOrders()

	order := e.GetOrder(orderID)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.Equal(t, "KIS001", order.KISOrderID)
	require.NotNil(t, order.ActualPrice)
	assert.Equal(t, 10000.0, *order.ActualPrice)
	require.NotNil(t, order.ExecutedAt)

	select {
	case fill := <-e.Fills():
		assert.Equal(t, orderID, fill.OrderID)
	default:
		t.Fatal("expected a fill on the channel")
	}
}

func TestProcessPendingOrdersSkipsManualOrders(t *testing.T) {
	broker := newFakeBroker()
	e := NewOrderExecutor(testConfig(), broker, nil)

	_, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, false, model.OrderTypeMarket)
	require.NoError(t, err)

	e.processPendingOrders()

	buys, _ := broker.calls()
	assert.Equal(t, 0, buys)
}

func TestOrderRetriesThenFails(t *testing.T) {
	broker := newFakeBroker()
	broker.buyResult = &connectors.OrderResult{Successful: false, Message: "insufficient balance"}

	e := NewOrderExecutor(testConfig(), broker, nil)

	clock := tradingTime(16, 20)
	e.now = func() time.Time { return clock }

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	// First attempt fails and reschedules.
	e.processPendingOrders()
	order := e.GetOrder(orderID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, 1, order.RetryCount)
	assert.Equal(t, "insufficient balance", order.ErrorMessage)
	assert.True(t, order.NextAttemptAt.After(clock))

	// Backoff not yet elapsed: the pass skips the order.
	e.processPendingOrders()
	buys, _ := broker.calls()
	assert.Equal(t, 1, buys)

	// Second attempt.
	clock = clock.Add(2 * time.Second)
	e.processPendingOrders()
	assert.Equal(t, 2, e.GetOrder(orderID).RetryCount)

	// Third attempt exhausts the retries.
	clock = clock.Add(5 * time.Second)
	e.processPendingOrders()

	order = e.GetOrder(orderID)
	assert.Equal(t, model.OrderStatusFailed, order.Status)
	assert.Equal(t, 3, order.RetryCount)

	// Failed order left the queue for good.
	clock = clock.Add(time.Minute)
	e.processPendingOrders()
	buys, _ = broker.calls()
	assert.Equal(t, 3, buys)
}

func TestOrderBrokerErrorRetries(t *testing.T) {
	broker := newFakeBroker()
	broker.buyErr = errors.New("connection reset")

	e := NewOrderExecutor(testConfig(), broker, nil)

	clock := tradingTime(16, 20)
	e.now = func() time.Time { return clock }

	orderID, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	e.processPendingOrders()
	order := e.GetOrder(orderID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Contains(t, order.ErrorMessage, "connection reset")
}

func TestStartStopLifecycle(t *testing.T) {
	config := testConfig()
	config.ExecutionInterval = 10 * time.Millisecond

	e := NewOrderExecutor(config, newFakeBroker(), nil)

	e.Start()
	assert.True(t, e.IsRunning())
	e.Start() // second start is a no-op

	e.Stop()
	assert.False(t, e.IsRunning())
	e.Stop() // second stop is a no-op
}

func TestAllOrdersSnapshot(t *testing.T) {
	e := NewOrderExecutor(testConfig(), newFakeBroker(), nil)

	first, err := e.AddBuyOrder("005930", "Samsung", 10000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)
	_, err = e.AddBuyOrder("000660", "Hynix", 50000, 1000000, true, model.OrderTypeMarket)
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder(first))

	pending, completed := e.AllOrders()
	assert.Len(t, pending, 1)
	assert.Len(t, completed, 1)
}
