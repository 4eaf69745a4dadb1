// Package risk centralizes the rules that decide whether the bot may open a
// new position, and sizes the position when it may.
package risk

import (
	"fmt"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/notify"
)

// Limits holds the configured risk policy.
type Limits struct {
	MaxRiskPerTradePct   float64
	DailyProfitTargetPct float64
	DailyLossLimitPct    float64
	RiskRewardRatio      float64
	MaxTradesPerDay      int
}

// Gate evaluates the risk rules against a fresh account context. Rules are
// checked in a fixed order and the first violation wins. Rule notifications
// are edge-triggered: each fires at most once per session.
type Gate struct {
	limits   Limits
	notifier notify.Notifier

	lossLimitNotified    bool
	profitTargetNotified bool
	maxTradesNotified    bool
}

// NewGate creates a gate with the given limits. The notifier may be nil.
func NewGate(limits Limits, notifier notify.Notifier) *Gate {
	return &Gate{limits: limits, notifier: notifier}
}

// Check evaluates all rules and, when trading is allowed, computes the
// position size for the next trade.
func (g *Gate) Check(acct domain.AccountContext) domain.RiskDecision {
	rules := g.limits

	lossLimit := -(acct.Equity * rules.DailyLossLimitPct / 100)
	if acct.RealizedPnlDaily < lossLimit {
		if !g.lossLimitNotified {
			g.send(notify.SeverityHigh, "Daily Loss Limit Reached",
				fmt.Sprintf("Loss limit of %.2f USD hit. Realized PnL: %.2f USD.", lossLimit, acct.RealizedPnlDaily))
			g.lossLimitNotified = true
		}
		return domain.RiskDecision{
			Reason: fmt.Sprintf("daily loss limit reached (%.2f USD)", acct.RealizedPnlDaily),
		}
	}

	profitTarget := acct.Equity * rules.DailyProfitTargetPct / 100
	if acct.RealizedPnlDaily >= profitTarget {
		// Halting on success as well is deliberate policy: lock the day in.
		if !g.profitTargetNotified {
			g.send(notify.SeverityHigh, "Daily Profit Target Reached",
				fmt.Sprintf("Profit target of %.2f USD hit. Realized PnL: %.2f USD.", profitTarget, acct.RealizedPnlDaily))
			g.profitTargetNotified = true
		}
		return domain.RiskDecision{
			Reason: fmt.Sprintf("daily profit target reached (%.2f USD)", acct.RealizedPnlDaily),
		}
	}

	if acct.TradeCountDaily > rules.MaxTradesPerDay {
		if !g.maxTradesNotified {
			g.send(notify.SeverityNormal, "Max Daily Trades Exceeded",
				fmt.Sprintf("%d trades today, limit %d.", acct.TradeCountDaily, rules.MaxTradesPerDay))
			g.maxTradesNotified = true
		}
		return domain.RiskDecision{
			Reason: fmt.Sprintf("maximum daily trade count exceeded (%d)", rules.MaxTradesPerDay),
		}
	}

	return domain.RiskDecision{
		IsTradingAllowed: true,
		PositionSizeUsd:  PositionSizeUsd(acct.Equity, rules),
	}
}

// PositionSizeUsd derives the nominal position size from the dollar risk
// budget and the stop distance implied by the reward:risk ratio. A tighter
// stop (higher ratio) yields a larger nominal position for the same risk.
func PositionSizeUsd(equity float64, rules Limits) float64 {
	if rules.RiskRewardRatio <= 0 {
		return 0
	}
	stopLossPct := rules.MaxRiskPerTradePct / rules.RiskRewardRatio
	if stopLossPct <= 0 {
		return 0
	}
	return (equity * rules.MaxRiskPerTradePct / 100) / (stopLossPct / 100)
}

func (g *Gate) send(severity notify.Severity, title, message string) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(title, message, severity)
}
