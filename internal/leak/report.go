package leak

import "time"

// Category is the resource class a report is about.
type Category string

const (
	EventListeners    Category = "event-listener"
	Timers            Category = "timer"
	HeapGrowth        Category = "heap-growth"
	ObjectReferences  Category = "object-reference"
	ExcessiveActivity Category = "excessive-activity"
)

// Severity grades a report.
type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// Report is one leak finding. Reports are values and never change once
// emitted.
type Report struct {
	ScopeID     string    `json:"scopeId"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Count       int       `json:"count"`
	Timestamp   time.Time `json:"timestamp"`
}

// Summary aggregates the reports of a Detector.
type Summary struct {
	Total       int              `json:"total"`
	BySeverity  map[Severity]int `json:"bySeverity"`
	ByCategory  map[Category]int `json:"byCategory"`
	HasCritical bool             `json:"hasCritical"`
}

func summarize(reports []Report) Summary {
	s := Summary{
		Total:      len(reports),
		BySeverity: make(map[Severity]int),
		ByCategory: make(map[Category]int),
	}
	for _, r := range reports {
		s.BySeverity[r.Severity]++
		s.ByCategory[r.Category]++
		if r.Severity == Critical {
			s.HasCritical = true
		}
	}
	return s
}
