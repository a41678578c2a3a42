package model

// Category is the document class inferred from the subject line.
type Category string

const (
	CategoryInvoices        Category = "Invoices"
	CategoryQuotes          Category = "Quotes"
	CategoryFinalStatements Category = "FinalStatements"
	CategoryIssues          Category = "Issues"
	CategoryNeedsReview     Category = "NeedsReview"
)

// display names in Italian, as they appear in the mailbox
var categoryLabels = map[Category]string{
	CategoryInvoices:        "Fatture",
	CategoryQuotes:          "Preventivi",
	CategoryFinalStatements: "Consuntivi",
	CategoryIssues:          "Segnalazioni",
	CategoryNeedsReview:     "Da Gestire",
}

// Label returns the display name used for folders and task titles.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Actionable reports whether an automatically routed message of this
// category also gets a follow-up task.
func (c Category) Actionable() bool {
	switch c {
	case CategoryInvoices, CategoryQuotes, CategoryFinalStatements, CategoryIssues:
		return true
	}
	return false
}

// Classification is derived from a Message and never persisted.
// Building is empty when no known building matched.
type Classification struct {
	Building   string   `json:"building"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

func (c Classification) HasBuilding() bool {
	return c.Building != ""
}
