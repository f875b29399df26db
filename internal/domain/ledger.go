package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger movement.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is a single movement on a client's account.
type Transaction struct {
	ID          int64           `json:"id"`
	Matricula   int64           `json:"matricula"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

// Signed returns the amount with the sign it contributes to the balance.
// Anything that is not income is treated as a debit.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// ScheduledPayment is a recurring bill due on a given day of the month.
type ScheduledPayment struct {
	ID        int64           `json:"id"`
	Matricula int64           `json:"matricula"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	DueDay    int             `json:"due_day"`
}

// PaymentLog records a scheduled payment that was paid.
type PaymentLog struct {
	ID        int64           `json:"id"`
	Matricula int64           `json:"matricula"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// Balance computes initial plus the signed sum of txs. A nil initial balance counts as zero.
func Balance(initial *decimal.Decimal, txs []Transaction) decimal.Decimal {
	total := DecimalOrZero(initial)
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}

// ClientDetails is the admin detail view of one client.
type ClientDetails struct {
	Client            Client             `json:"client"`
	Balance           decimal.Decimal    `json:"balance"`
	Transactions      []Transaction      `json:"transactions"`
	ScheduledPayments []ScheduledPayment `json:"scheduled_payments"`
	PaymentLogs       []PaymentLog       `json:"payment_logs"`
}
