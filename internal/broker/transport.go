package broker

import (
	"context"

	"github.com/fandresen/trAIding/internal/domain"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderMarket         OrderType = "MARKET"
	OrderStopMarket     OrderType = "STOP_MARKET"
	OrderTakeProfit     OrderType = "TAKE_PROFIT_MARKET"
	OrderTrailingStop   OrderType = "TRAILING_STOP_MARKET"
)

// OrderRequest describes one order submission.
type OrderRequest struct {
	Symbol        string
	Side          domain.Side
	Type          OrderType
	Quantity      float64
	StopPrice     float64 // trigger price for stop/take-profit orders
	CallbackRate  float64 // percent, trailing stop only
	ReduceOnly    bool
	ClientOrderID string
}

// OrderAck is the exchange acknowledgement of a submitted order.
type OrderAck struct {
	OrderID    string
	AvgPrice   float64
	OrigQty    float64
	UpdateTime int64
}

// OrderTransport is the exchange order API consumed by the engine and the
// position monitor. Every call must respect the context deadline.
type OrderTransport interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
