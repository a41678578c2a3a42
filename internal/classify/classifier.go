package classify

import (
	"strings"

	"mailtriage/internal/model"
)

const (
	baseConfidence     = 0.70
	buildingConfidence = 0.90
)

// categoryRules are checked against the lower-cased subject in order; the
// first rule with a matching keyword wins.
var categoryRules = []struct {
	keywords []string
	category model.Category
}{
	{[]string{"fattur", "invoice"}, model.CategoryInvoices},
	{[]string{"preventiv"}, model.CategoryQuotes},
	{[]string{"consuntiv"}, model.CategoryFinalStatements},
	{[]string{"guasto", "segnalazione"}, model.CategoryIssues},
}

// Classifier assigns a building and a category to a message using
// substring heuristics. It is safe for concurrent use.
type Classifier struct {
	buildings []string
	lowered   []string
}

// NewClassifier keeps its own copy of buildings; the order decides which
// building wins when several match.
func NewClassifier(buildings []string) *Classifier {
	c := &Classifier{
		buildings: make([]string, len(buildings)),
		lowered:   make([]string, len(buildings)),
	}
	copy(c.buildings, buildings)
	for i, b := range buildings {
		c.lowered[i] = strings.ToLower(b)
	}
	return c
}

// Classify never fails. The sender is accepted for future rules but not
// used yet.
func (c *Classifier) Classify(subject, body, sender string) model.Classification {
	subj := strings.ToLower(subject)
	text := strings.ToLower(body)

	building := c.matchBuilding(subj, text)

	confidence := baseConfidence
	if building != "" {
		confidence = buildingConfidence
	}

	return model.Classification{
		Building:   building,
		Category:   matchCategory(subj),
		Confidence: confidence,
	}
}

func (c *Classifier) matchBuilding(subj, body string) string {
	for i, name := range c.lowered {
		if name == "" {
			continue
		}
		if strings.Contains(subj, name) || strings.Contains(body, name) {
			return c.buildings[i]
		}
	}
	return ""
}

func matchCategory(subj string) model.Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(subj, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryNeedsReview
}
