package trading

import (
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/connectors"
	"daytrader/src/model"
	"daytrader/src/notify"
)

const fillQueueSize = 64

// stopTimeout bounds how long Stop waits for a loop to drain.
const stopTimeout = 5 * time.Second

// Broker places orders against the brokerage.
type Broker interface {
	PlaceBuyOrder(symbol string, quantity int64, price float64, orderType string) (*connectors.OrderResult, error)
	PlaceSellOrder(symbol string, quantity int64, price float64, orderType string) (*connectors.OrderResult, error)
}

// OrderExecutor drains the pending buy queue against the broker.
// Failed attempts are rescheduled with a growing delay; an order that
// exhausts its retries moves to the completed set as failed.
type OrderExecutor struct {
	config Config
	broker Broker
	events notify.Sink
	now    func() time.Time

	mu        sync.Mutex
	isRunning bool
	pending   map[string]*model.BuyOrder
	completed map[string]*model.BuyOrder

	fills chan model.BuyOrder
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewOrderExecutor(config Config, broker Broker, events notify.Sink) *OrderExecutor {
	if events == nil {
		events = notify.NopSink{}
	}
	return &OrderExecutor{
		config:    config,
		broker:    broker,
		events:    events,
		now:       time.Now,
		pending:   make(map[string]*model.BuyOrder),
		completed: make(map[string]*model.BuyOrder),
		fills:     make(chan model.BuyOrder, fillQueueSize),
	}
}

// Fills streams completed buy orders for position opening.
func (e *OrderExecutor) Fills() <-chan model.BuyOrder {
	return e.fills
}

func (e *OrderExecutor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		logger.Warn("order executor is already running")
		return
	}

	e.isRunning = true
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go e.executionLoop(e.stop)

	logger.Info("order executor started")
}

func (e *OrderExecutor) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	close(e.stop)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		logger.Warn("timed out waiting for order executor to stop")
	}

	logger.Info("order executor stopped")
}

// IsRunning reports whether the execution loop is live.
func (e *OrderExecutor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

// AddBuyOrder queues a buy sized as floor(investment / price).
func (e *OrderExecutor) AddBuyOrder(symbol, stockName string, targetPrice, investmentAmount float64, autoExecute bool, orderType model.OrderType) (string, error) {
	if targetPrice <= 0 {
		return "", fmt.Errorf("invalid target price: %.2f", targetPrice)
	}

	quantity := int64(investmentAmount / targetPrice)
	if quantity <= 0 {
		return "", fmt.Errorf("invalid order quantity: %d", quantity)
	}

	now := e.now()
	order := &model.BuyOrder{
		OrderID:       newEntityID("BUY", symbol, now),
		Symbol:        symbol,
		StockName:     stockName,
		TargetPrice:   targetPrice,
		Quantity:      quantity,
		OrderType:     orderType,
		AutoExecute:   autoExecute,
		Status:        model.OrderStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	e.mu.Lock()
	e.pending[order.OrderID] = order
	e.mu.Unlock()

	logger.WithField("order_id", order.OrderID).
		WithField("symbol", symbol).
		WithField("quantity", quantity).
		Info("buy order added")

	e.events.Publish(notify.NewEvent(notify.EventOrderQueued, map[string]interface{}{
		"order_id": order.OrderID,
		"symbol":   symbol,
		"quantity": quantity,
	}))
	return order.OrderID, nil
}

// CancelOrder cancels a pending order. An order already executing or
// finished cannot be cancelled.
func (e *OrderExecutor) CancelOrder(orderID string) error {
	e.mu.Lock()
	order, ok := e.pending[orderID]
	if !ok {
		if done, exists := e.completed[orderID]; exists && done.Status.Terminal() {
			e.mu.Unlock()
			return fmt.Errorf("cannot cancel order %s in status %s", orderID, done.Status)
		}
		e.mu.Unlock()
		return fmt.Errorf("order not found for cancellation: %s", orderID)
	}
	if order.Status != model.OrderStatusPending {
		e.mu.Unlock()
		return fmt.Errorf("cannot cancel order %s in status %s", orderID, order.Status)
	}

	order.Status = model.OrderStatusCancelled
	delete(e.pending, orderID)
	e.completed[orderID] = order
	e.mu.Unlock()

	logger.WithField("order_id", orderID).Info("order cancelled")
	e.events.Publish(notify.NewEvent(notify.EventOrderCancelled, map[string]interface{}{
		"order_id": orderID,
	}))
	return nil
}

// GetOrder looks up an order in either collection.
func (e *OrderExecutor) GetOrder(orderID string) *model.BuyOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order, ok := e.pending[orderID]; ok {
		snapshot := *order
		return &snapshot
	}
	if order, ok := e.completed[orderID]; ok {
		snapshot := *order
		return &snapshot
	}
	return nil
}

// AllOrders snapshots both collections.
func (e *OrderExecutor) AllOrders() (pending, completed []model.BuyOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, order := range e.pending {
		pending = append(pending, *order)
	}
	for _, order := range e.completed {
		completed = append(completed, *order)
	}
	return pending, completed
}

func (e *OrderExecutor) executionLoop(stop chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.ExecutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.processPendingOrders()
		}
	}
}

// processPendingOrders runs one pass over the queue. Orders whose
// retry backoff has not elapsed are skipped this pass.
func (e *OrderExecutor) processPendingOrders() {
	now := e.now()

	e.mu.Lock()
	due := make([]string, 0, len(e.pending))
	for orderID, order := range e.pending {
		if order.Status != model.OrderStatusPending || !order.AutoExecute {
			continue
		}
		if order.NextAttemptAt.After(now) {
			continue
		}
		order.Status = model.OrderStatusExecuting
		due = append(due, orderID)
	}
	e.mu.Unlock()

	for _, orderID := range due {
		e.executeOrder(orderID)
	}
}

func (e *OrderExecutor) executeOrder(orderID string) {
	e.mu.Lock()
	order, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return
	}
	symbol := order.Symbol
	quantity := order.Quantity
	targetPrice := order.TargetPrice
	orderType := order.OrderType
	e.mu.Unlock()

	logger.WithField("order_id", orderID).Info("executing order")
	e.events.Publish(notify.NewEvent(notify.EventOrderExecuting, map[string]interface{}{
		"order_id": orderID,
	}))

	price := 0.0
	if orderType == model.OrderTypeLimit {
		price = targetPrice
	}

	result, err := e.broker.PlaceBuyOrder(symbol, quantity, price, string(orderType))
	if err != nil {
		e.handleOrderError(orderID, err.Error())
		return
	}
	if !result.Successful {
		e.handleOrderError(orderID, result.Message)
		return
	}

	now := e.now()

	e.mu.Lock()
	order, ok = e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return
	}
	order.Status = model.OrderStatusCompleted
	executedAt := now
	order.ExecutedAt = &executedAt
	order.KISOrderID = result.KISOrderID
	actualPrice := targetPrice
	order.ActualPrice = &actualPrice
	delete(e.pending, orderID)
	e.completed[orderID] = order
	fill := *order
	e.mu.Unlock()

	logger.WithField("order_id", orderID).WithField("kis_order_id", result.KISOrderID).Info("order completed")
	e.events.Publish(notify.NewEvent(notify.EventOrderCompleted, map[string]interface{}{
		"order_id":     orderID,
		"kis_order_id": result.KISOrderID,
		"symbol":       symbol,
	}))

	select {
	case e.fills <- fill:
	default:
		logger.WithField("order_id", orderID).Warn("fill queue full, dropping fill notification")
	}
}

func (e *OrderExecutor) handleOrderError(orderID, errorMessage string) {
	now := e.now()

	e.mu.Lock()
	order, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return
	}

	order.RetryCount++
	order.ErrorMessage = errorMessage

	failed := order.RetryCount >= e.config.MaxOrderRetries
	if failed {
		order.Status = model.OrderStatusFailed
		delete(e.pending, orderID)
		e.completed[orderID] = order
	} else {
		order.Status = model.OrderStatusPending
		order.NextAttemptAt = now.Add(e.config.OrderRetryDelay * time.Duration(order.RetryCount))
	}
	retryCount := order.RetryCount
	e.mu.Unlock()

	if failed {
		logger.WithField("order_id", orderID).WithField("error", errorMessage).Error("order failed permanently")
		e.events.Publish(notify.NewEvent(notify.EventOrderFailed, map[string]interface{}{
			"order_id": orderID,
			"error":    errorMessage,
		}))
	} else {
		logger.WithField("order_id", orderID).
			WithField("retry", fmt.Sprintf("%d/%d", retryCount, e.config.MaxOrderRetries)).
			WithField("error", errorMessage).
			Warn("order failed, retrying")
	}
}
