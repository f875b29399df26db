package account

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/inovabank/internal/domain"
)

// Statement is the account movement over [From, To).
type Statement struct {
	From           time.Time            `json:"from"`
	To             time.Time            `json:"to"`
	OpeningBalance decimal.Decimal      `json:"opening_balance"`
	Transactions   []domain.Transaction `json:"transactions"`
	TotalIncome    decimal.Decimal      `json:"total_income"`
	TotalExpense   decimal.Decimal      `json:"total_expense"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
}

// BuildStatement splits txs around the period. Movements before from make up the
// opening balance; movements at or after to are ignored.
func BuildStatement(initial *decimal.Decimal, txs []domain.Transaction, from, to time.Time) Statement {
	st := Statement{
		From:           from,
		To:             to,
		OpeningBalance: domain.DecimalOrZero(initial),
		Transactions:   make([]domain.Transaction, 0),
		TotalIncome:    decimal.Zero,
		TotalExpense:   decimal.Zero,
	}

	for _, tx := range txs {
		switch {
		case tx.Date.Before(from):
			st.OpeningBalance = st.OpeningBalance.Add(tx.Signed())
		case tx.Date.Before(to):
			st.Transactions = append(st.Transactions, tx)
			if tx.Type == domain.TransactionIncome {
				st.TotalIncome = st.TotalIncome.Add(tx.Amount)
			} else {
				st.TotalExpense = st.TotalExpense.Add(tx.Amount)
			}
		}
	}

	sortStable(st.Transactions, func(a, b domain.Transaction) bool {
		if a.Date.Equal(b.Date) {
			return a.ID < b.ID
		}
		return a.Date.Before(b.Date)
	})

	st.ClosingBalance = st.OpeningBalance.Add(st.TotalIncome).Sub(st.TotalExpense)
	return st
}

func sortStable[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
