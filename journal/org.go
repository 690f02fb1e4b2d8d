package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a hedge trade as an Org-mode block. Structured
// facts go in a PROPERTIES drawer so the journal stays searchable.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** %s %s %.2f (%s)", t.TradeType, t.Symbol, t.ExecutedVolume, shortID(t.OrderID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":CYCLE_ID: %s\n", t.CycleID))
	b.WriteString(fmt.Sprintf(":ORDER_ID: %s\n", t.OrderID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":TERMINAL_SYMBOL: %s\n", t.TerminalSymbol))
	b.WriteString(fmt.Sprintf(":REQUESTED_VOLUME: %.2f\n", t.RequestedVolume))
	b.WriteString(fmt.Sprintf(":EXECUTED_VOLUME: %.2f\n", t.ExecutedVolume))
	b.WriteString(fmt.Sprintf(":PRICE: %.5f\n", t.ExecutedPrice))
	b.WriteString(fmt.Sprintf(":CURRENT_NET: %.2f\n", t.CurrentNet))
	b.WriteString(fmt.Sprintf(":TARGET: %.2f\n", t.TargetPosition))
	b.WriteString(fmt.Sprintf(":POSITION_BEFORE: %.2f\n", t.CurrentPosition))
	b.WriteString(fmt.Sprintf(":TREND: %s %.6f\n", t.TrendSignal, t.TrendStrength))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Timestamp.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	return b.String()
}

// FormatRejectedOrg renders a rejected decision as an Org-mode block.
func FormatRejectedOrg(r RejectedRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("** REJECTED %s %+.2f\n", r.Symbol, r.DeltaPosition))
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":CYCLE_ID: %s\n", r.CycleID))
	b.WriteString(fmt.Sprintf(":POSITION: %.2f\n", r.CurrentPosition))
	b.WriteString(fmt.Sprintf(":CURRENT_NET: %.2f\n", r.CurrentNet))
	b.WriteString(fmt.Sprintf(":TREND: %s\n", r.TrendSignal))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", r.Timestamp.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", r.Reason))
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	parts := make([]string, len(trades))
	for i, t := range trades {
		parts[i] = FormatTradeOrg(t)
	}
	return strings.Join(parts, "\n")
}

func FormatRejectedListOrg(recs []RejectedRecord) string {
	parts := make([]string, len(recs))
	for i, r := range recs {
		parts[i] = FormatRejectedOrg(r)
	}
	return strings.Join(parts, "\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
