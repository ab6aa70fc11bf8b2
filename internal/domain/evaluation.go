package domain

// LabeledEmail is one entry of an evaluation dataset.
type LabeledEmail struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	IsImportant bool   `json:"is_important"`
}

// Confusion counts classifier outcomes against labels.
type Confusion struct {
	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	TrueNegatives  int `json:"tn"`
	FalseNegatives int `json:"fn"`
}

// Add records one prediction.
func (c *Confusion) Add(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TruePositives++
	case predicted && !actual:
		c.FalsePositives++
	case !predicted && actual:
		c.FalseNegatives++
	default:
		c.TrueNegatives++
	}
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is the share of emails flagged important that were important.
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is the share of important emails that were flagged.
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
