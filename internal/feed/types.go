package feed

import "github.com/rickgao/polysquad/internal/model"

// apiActivity is the wire format of an activity event.
type apiActivity struct {
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Type            string  `json:"type"`
	UsdcSize        float64 `json:"usdcSize"`
	TransactionHash string  `json:"transactionHash"`
	Price           float64 `json:"price"`
	Side            string  `json:"side"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	Outcome         string  `json:"outcome"`
}

// ToActivity converts the wire format to the domain type.
func (a apiActivity) ToActivity() model.Activity {
	return model.Activity{
		Timestamp:       a.Timestamp,
		ConditionID:     a.ConditionID,
		Type:            a.Type,
		UsdcSize:        a.UsdcSize,
		TransactionHash: a.TransactionHash,
		Price:           a.Price,
		Side:            a.Side,
		Title:           a.Title,
		Slug:            a.Slug,
		Outcome:         a.Outcome,
	}
}

// apiPosition is the wire format of an open or closed position.
type apiPosition struct {
	Title        string  `json:"title"`
	Outcome      string  `json:"outcome"`
	Slug         string  `json:"slug"`
	CashPnl      float64 `json:"cashPnl"`
	RealizedPnl  float64 `json:"realizedPnl"`
	CurrentValue float64 `json:"currentValue"`
}

// ToPosition converts the wire format to the domain type.
func (p apiPosition) ToPosition() model.Position {
	return model.Position{
		Title:        p.Title,
		Outcome:      p.Outcome,
		Slug:         p.Slug,
		CashPnl:      p.CashPnl,
		RealizedPnl:  p.RealizedPnl,
		CurrentValue: p.CurrentValue,
	}
}

// apiValue is one row of the portfolio value response.
type apiValue struct {
	User  string  `json:"user"`
	Value float64 `json:"value"`
}
