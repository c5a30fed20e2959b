package ledger

import (
	"time"

	"papertrade-go/internal/models"

	"github.com/shopspring/decimal"
)

// TradeStats summarizes executed orders over a window.
type TradeStats struct {
	Buys        int             `json:"buys"`
	Sells       int             `json:"sells"`
	GrossBought decimal.Decimal `json:"gross_bought"`
	GrossSold   decimal.Decimal `json:"gross_sold"`
}

// Statistics is the trading activity shown next to the history.
type Statistics struct {
	LastDay TradeStats `json:"last_24h"`
	AllTime TradeStats `json:"all_time"`
}

func (s *TradeStats) add(tx models.Transaction) {
	switch tx.Side {
	case models.SideBuy:
		s.Buys++
		s.GrossBought = s.GrossBought.Add(tx.Total)
	case models.SideSell:
		s.Sells++
		s.GrossSold = s.GrossSold.Add(tx.Total)
	}
}

// summarize counts txs over all time and since the given instant.
func summarize(txs []models.Transaction, since time.Time) Statistics {
	var stats Statistics
	for _, tx := range txs {
		stats.AllTime.add(tx)
		if !tx.CreatedAt.Before(since) {
			stats.LastDay.add(tx)
		}
	}
	return stats
}
