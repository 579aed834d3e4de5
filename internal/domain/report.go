package domain

import "time"

// ReportType selects which slice of the collection a report covers.
type ReportType string

const (
	ReportActive  ReportType = "ACTIVE"  // effective status != PAID
	ReportPaid    ReportType = "PAID"    // settled one-time bills
	ReportHistory ReportType = "HISTORY" // anything ever settled
	ReportAll     ReportType = "ALL"
)

// ReportRow is one line of a bills report. ReferenceDate is the due
// date for active reports and the settlement date for paid/history.
type ReportRow struct {
	BillName      string     `json:"bill_name"`
	ReferenceDate time.Time  `json:"reference_date"`
	Frequency     Frequency  `json:"frequency"`
	Amount        *float64   `json:"amount,omitempty"`
	Currency      string     `json:"currency"`
	Status        BillStatus `json:"status"`
}

// Report is the dataset behind a generated statement. Rendering
// (PDF or otherwise) is the caller's concern.
type Report struct {
	Title            string      `json:"title"`
	Type             ReportType  `json:"type"`
	GeneratedFor     string      `json:"generated_for"`
	GeneratedAt      time.Time   `json:"generated_at"`
	Currency         string      `json:"currency"`
	OutstandingTotal float64     `json:"outstanding_total"`
	SettledTotal     float64     `json:"settled_total"`
	Rows             []ReportRow `json:"rows"`
}
