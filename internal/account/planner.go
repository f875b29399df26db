package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/inovabank/internal/domain"
)

// PlannedPayment is a scheduled payment with its next occurrence.
type PlannedPayment struct {
	domain.ScheduledPayment
	NextDue time.Time `json:"next_due"`
}

// Plan lists the upcoming payments of a client, soonest first.
type Plan struct {
	Payments          []PlannedPayment `json:"payments"`
	MonthlyCommitment decimal.Decimal  `json:"monthly_commitment"`
}

// NextDueDate returns the next date on day-of-month day, counting today. Days past the
// end of a month fall on its last day.
func NextDueDate(day int, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	due := dayInMonth(today.Year(), today.Month(), day, now.Location())
	if due.Before(today) {
		next := today.AddDate(0, 0, -today.Day()+1).AddDate(0, 1, 0)
		due = dayInMonth(next.Year(), next.Month(), day, now.Location())
	}
	return due
}

// BuildPlan computes the next due date of every payment and the total per month.
func BuildPlan(payments []domain.ScheduledPayment, now time.Time) Plan {
	plan := Plan{Payments: make([]PlannedPayment, 0, len(payments)), MonthlyCommitment: decimal.Zero}

	for _, p := range payments {
		plan.Payments = append(plan.Payments, PlannedPayment{ScheduledPayment: p, NextDue: NextDueDate(p.DueDay, now)})
		plan.MonthlyCommitment = plan.MonthlyCommitment.Add(p.Amount)
	}

	sortStable(plan.Payments, func(a, b PlannedPayment) bool { return a.NextDue.Before(b.NextDue) })
	return plan
}

func dayInMonth(year int, month time.Month, day int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
