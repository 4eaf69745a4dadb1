package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/fandresen/trAIding/internal/domain"
)

// BalanceSource is the slice of the REST client the account service needs.
type BalanceSource interface {
	AccountBalance(ctx context.Context) (Balance, error)
	Positions(ctx context.Context, symbol string) ([]domain.Position, error)
}

// TradeHistory supplies the trades opened today for the daily risk rules.
type TradeHistory interface {
	TodaysTrades(ctx context.Context, now time.Time) ([]*domain.Trade, error)
}

// AccountService builds the fresh per-cycle account context from exchange
// state and local trade history. Implements engine.AccountSource.
type AccountService struct {
	client  BalanceSource
	history TradeHistory
	symbol  string

	now func() time.Time
}

// NewAccountService wires the account context builder.
func NewAccountService(client BalanceSource, history TradeHistory, symbol string) *AccountService {
	return &AccountService{client: client, history: history, symbol: symbol, now: time.Now}
}

// Snapshot queries balance, open positions and today's trades. Nothing is
// cached: stale equity would corrupt position sizing and the daily limits.
func (a *AccountService) Snapshot(ctx context.Context) (domain.AccountContext, error) {
	balance, err := a.client.AccountBalance(ctx)
	if err != nil {
		return domain.AccountContext{}, fmt.Errorf("account balance: %w", err)
	}

	positions, err := a.client.Positions(ctx, a.symbol)
	if err != nil {
		return domain.AccountContext{}, fmt.Errorf("open positions: %w", err)
	}

	acct := domain.AccountContext{
		Equity:           balance.Equity,
		AvailableBalance: balance.AvailableBalance,
		UnrealizedPnl:    balance.UnrealizedPnl,
		OpenPositions:    positions,
	}

	trades, err := a.history.TodaysTrades(ctx, a.now())
	if err != nil {
		return domain.AccountContext{}, fmt.Errorf("todays trades: %w", err)
	}
	acct.TradeCountDaily = len(trades)
	for _, t := range trades {
		if !t.IsOpen() {
			acct.RealizedPnlDaily += t.Pnl
		}
	}
	return acct, nil
}
