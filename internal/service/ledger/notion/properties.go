package notion

import (
	"time"

	"github.com/kazusato/trade-journal/internal/entity"
)

// Destination schema: Symbol(select), Side(select), Size(number),
// Entry/Exit Price(number), Fee(number), PnL(number), Timestamp(date),
// Subaccount(rich_text).
//
// Number properties with no value are omitted entirely; the API rejects
// explicit nulls for them.
func mapProperties(record entity.TradeRecord) map[string]any {
	props := map[string]any{
		"Symbol": selectProp(record.Symbol),
		"Side":   selectProp(string(record.Side)),
		"Fee":    numberProp(record.Fee.InexactFloat64()),
		"PnL":    numberProp(record.Pnl.InexactFloat64()),
		"Timestamp": map[string]any{
			"date": map[string]any{
				"start": time.UnixMilli(record.Timestamp).UTC().Format(time.RFC3339),
			},
		},
		"Subaccount": richTextProp(record.Subaccount),
	}
	if record.Size != nil {
		props["Size"] = numberProp(record.Size.InexactFloat64())
	}
	if record.Price != nil {
		props["Entry/Exit Price"] = numberProp(record.Price.InexactFloat64())
	}
	return props
}

func selectProp(name string) map[string]any {
	return map[string]any{
		"select": map[string]any{"name": name},
	}
}

func numberProp(v float64) map[string]any {
	return map[string]any{"number": v}
}

func richTextProp(content string) map[string]any {
	return map[string]any{
		"rich_text": []map[string]any{
			{
				"type": "text",
				"text": map[string]any{"content": content},
			},
		},
	}
}
