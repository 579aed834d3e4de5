// Package domain holds the core entities of the bill tracker and the
// error taxonomy shared by services and handlers.
package domain

import "time"

// Frequency describes how often a bill recurs.
type Frequency string

const (
	FrequencyOneTime Frequency = "ONE_TIME"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyTermly  Frequency = "TERMLY" // school-term cadence, 4 months
	FrequencyYearly  Frequency = "YEARLY"
	FrequencyCustom  Frequency = "CUSTOM"
)

// IsRecurring reports whether paying the bill reschedules it.
func (f Frequency) IsRecurring() bool {
	switch f {
	case FrequencyMonthly, FrequencyTermly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

// BillStatus is the coarse persisted state of a bill. For recurring
// bills it is a weak signal; the display status is always re-derived
// from the due date; only one-time bills reach a terminal PAID.
type BillStatus string

const (
	StatusUpcoming BillStatus = "UPCOMING"
	StatusDueToday BillStatus = "DUE_TODAY"
	StatusOverdue  BillStatus = "OVERDUE"
	StatusPaid     BillStatus = "PAID"
)

// Bill is a single financial obligation.
type Bill struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	Amount         *float64   `json:"amount,omitempty"`   // nil = flexible amount
	Currency       string     `json:"currency,omitempty"` // falls back to profile currency
	DueDate        time.Time  `json:"due_date"`
	Frequency      Frequency  `json:"frequency"`
	IntervalMonths int        `json:"interval_months,omitempty"` // CUSTOM only
	Status         BillStatus `json:"status"`

	LastPaidDate   *time.Time `json:"last_paid_date,omitempty"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	ProofImage     string     `json:"proof_image,omitempty"`
	PaymentLink    string     `json:"payment_link,omitempty"`
	RequireProof   bool       `json:"require_proof"`

	// Administrative overlay, mutable only via the admin path.
	IsDisputed   bool    `json:"is_disputed,omitempty"`
	WaiverAmount float64 `json:"waiver_amount,omitempty"`
	AdminNotes   string  `json:"admin_notes,omitempty"`

	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BillView is a Bill enriched with its effective (time-derived) status.
// The effective status is computed on every read and never stored.
type BillView struct {
	Bill
	EffectiveStatus BillStatus `json:"effective_status"`
}

// CreateBillRequest is the payload to create a new bill.
type CreateBillRequest struct {
	Name           string    `json:"name"`
	Amount         *float64  `json:"amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	DueDate        time.Time `json:"due_date"`
	Frequency      Frequency `json:"frequency"`
	IntervalMonths int       `json:"interval_months,omitempty"`
	PaymentLink    string    `json:"payment_link,omitempty"`
	RequireProof   *bool     `json:"require_proof,omitempty"` // default true
}

// BillPatch enumerates the fields a user may change on an existing
// bill. The administrative overlay (dispute, waiver, notes) is
// deliberately absent; those move only through AdminBillPatch.
type BillPatch struct {
	Name           *string    `json:"name,omitempty"`
	Amount         *float64   `json:"amount,omitempty"`
	Currency       *string    `json:"currency,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Frequency      *Frequency `json:"frequency,omitempty"`
	IntervalMonths *int       `json:"interval_months,omitempty"`
	PaymentLink    *string    `json:"payment_link,omitempty"`
	RequireProof   *bool      `json:"require_proof,omitempty"`
}

// PayBillRequest carries optional settlement evidence. Whether the
// evidence is mandatory depends on the verification gate.
type PayBillRequest struct {
	TransactionRef string `json:"transaction_ref,omitempty"`
	ProofImage     string `json:"proof_image,omitempty"`
}

// SecurityConfig is the per-install security configuration.
type SecurityConfig struct {
	PaymentValidationEnabled bool `json:"payment_validation_enabled"`
}

// Reminder is a due-date notification produced by the reminder scan.
type Reminder struct {
	BillID   string     `json:"bill_id"`
	BillName string     `json:"bill_name"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	DueDate  time.Time  `json:"due_date"`
	Status   BillStatus `json:"status"`
	DaysLeft int        `json:"days_left"` // negative when overdue
}
