package commission

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

// Calculate returns the commission provisioned for a priced item. With no
// attributed professional no commission is owed. An active rule applies its
// flat amount or percentage; otherwise the clinic-level default percentage
// applies.
func Calculate(itemPrice money.Cents, professionalID *uuid.UUID, rule *Rule, defaultPercent int) money.Cents {
	if professionalID == nil {
		return 0
	}
	if rule != nil && rule.Active {
		if rule.Type == TypeFlat {
			return rule.FlatAmount
		}
		return money.Percent(itemPrice, rule.Percent)
	}
	return money.Percent(itemPrice, defaultPercent)
}

// Competencia formats the accounting period for a provision created at t.
func Competencia(t time.Time) string {
	return t.Format("2006-01")
}
