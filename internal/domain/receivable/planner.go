package receivable

import (
	"fmt"
	"time"

	"github.com/dentara/dentara/pkg/money"
)

// Installment is one planned payment. Number 0 is the entry payment.
type Installment struct {
	Number  int
	DueDate time.Time
	Amount  money.Cents
}

// Plan splits total into an entry payment plus count installments whose
// amounts sum to total exactly. Equal shares are rounded down to the minor
// unit and the last installment absorbs the remainder.
//
// When explicitDates is supplied it must have exactly count entries. Otherwise
// due dates are generated by calendar-month addition from start, so a plan
// started on the 10th stays on the 10th across months of different length.
// The entry payment, when present, is due on start itself.
func Plan(total, downPayment money.Cents, count int, explicitDates []time.Time, start time.Time) ([]Installment, error) {
	if total < 0 {
		return nil, fmt.Errorf("total cannot be negative")
	}
	if downPayment < 0 {
		return nil, fmt.Errorf("down payment cannot be negative")
	}
	if downPayment > total {
		return nil, fmt.Errorf("down payment %s exceeds total %s", downPayment, total)
	}
	if count < 1 {
		return nil, fmt.Errorf("installment count must be at least 1, got %d", count)
	}
	if len(explicitDates) > 0 && len(explicitDates) != count {
		return nil, fmt.Errorf("expected %d due dates, got %d", count, len(explicitDates))
	}

	amounts, err := money.Split(total-downPayment, count)
	if err != nil {
		return nil, err
	}

	var out []Installment
	if downPayment > 0 {
		out = append(out, Installment{Number: 0, DueDate: start, Amount: downPayment})
	}
	for i := 0; i < count; i++ {
		due := start.AddDate(0, i+1, 0)
		if len(explicitDates) > 0 {
			due = explicitDates[i]
		}
		out = append(out, Installment{Number: i + 1, DueDate: due, Amount: amounts[i]})
	}
	return out, nil
}
