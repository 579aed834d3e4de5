package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/billminder/billminder-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// billRow is the bills table shape on the PostgREST side.
type billRow struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	Amount         *float64 `json:"amount"`
	Currency       *string  `json:"currency"`
	DueDate        string   `json:"due_date"`
	Frequency      string   `json:"frequency"`
	IntervalMonths *int     `json:"interval_months"`
	Status         string   `json:"status"`
	LastPaidDate   *string  `json:"last_paid_date"`
	TransactionRef *string  `json:"transaction_ref"`
	ProofImage     *string  `json:"proof_image"`
	PaymentLink    *string  `json:"payment_link"`
	RequireProof   bool     `json:"require_proof"`
	IsDisputed     bool     `json:"is_disputed"`
	WaiverAmount   *float64 `json:"waiver_amount"`
	AdminNotes     *string  `json:"admin_notes"`
	LastNotifiedAt *string  `json:"last_notified_at"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// FetchBills pulls every bill owned by userID from the remote mirror.
func (c *Client) FetchBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "supabase.FetchBills")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		path := fmt.Sprintf("bills?user_id=eq.%s&order=due_date.asc", url.QueryEscape(userID))
		body, reqErr = c.doRequest(ctx, http.MethodGet, path)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []billRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bills response: %w", err)
	}

	bills := make([]domain.Bill, 0, len(rows))
	for _, r := range rows {
		bills = append(bills, r.toDomain())
	}
	return bills, nil
}

// UpsertBill pushes one bill to the remote mirror, inserting or
// overwriting by primary key.
func (c *Client) UpsertBill(ctx context.Context, bill *domain.Bill) error {
	ctx, span := tracer.Start(ctx, "supabase.UpsertBill")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", bill.ID))

	row := billRowFromDomain(bill)
	return c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "bills?on_conflict=id", row, true)
		return err
	})
}

// DeleteBill removes a bill from the remote mirror. Deleting a bill
// that was never mirrored is not an error.
func (c *Client) DeleteBill(ctx context.Context, billID string) error {
	ctx, span := tracer.Start(ctx, "supabase.DeleteBill")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	return c.execute(ctx, func() error {
		return c.doDelete(ctx, fmt.Sprintf("bills?id=eq.%s", url.QueryEscape(billID)))
	})
}

func (r billRow) toDomain() domain.Bill {
	b := domain.Bill{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		Amount:       r.Amount,
		DueDate:      parseRemoteTime(r.DueDate),
		Frequency:    domain.Frequency(r.Frequency),
		Status:       domain.BillStatus(r.Status),
		RequireProof: r.RequireProof,
		IsDisputed:   r.IsDisputed,
		CreatedAt:    parseRemoteTime(r.CreatedAt),
		UpdatedAt:    parseRemoteTime(r.UpdatedAt),
	}
	if r.Currency != nil {
		b.Currency = *r.Currency
	}
	if r.IntervalMonths != nil {
		b.IntervalMonths = *r.IntervalMonths
	}
	if r.LastPaidDate != nil {
		t := parseRemoteTime(*r.LastPaidDate)
		b.LastPaidDate = &t
	}
	if r.TransactionRef != nil {
		b.TransactionRef = *r.TransactionRef
	}
	if r.ProofImage != nil {
		b.ProofImage = *r.ProofImage
	}
	if r.PaymentLink != nil {
		b.PaymentLink = *r.PaymentLink
	}
	if r.WaiverAmount != nil {
		b.WaiverAmount = *r.WaiverAmount
	}
	if r.AdminNotes != nil {
		b.AdminNotes = *r.AdminNotes
	}
	if r.LastNotifiedAt != nil {
		t := parseRemoteTime(*r.LastNotifiedAt)
		b.LastNotifiedAt = &t
	}
	return b
}

func billRowFromDomain(b *domain.Bill) map[string]any {
	row := map[string]any{
		"id":            b.ID,
		"user_id":       b.UserID,
		"name":          b.Name,
		"due_date":      b.DueDate.UTC().Format(time.RFC3339Nano),
		"frequency":     string(b.Frequency),
		"status":        string(b.Status),
		"require_proof": b.RequireProof,
		"is_disputed":   b.IsDisputed,
		"created_at":    b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":    b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if b.Amount != nil {
		row["amount"] = *b.Amount
	}
	if b.Currency != "" {
		row["currency"] = b.Currency
	}
	if b.IntervalMonths > 0 {
		row["interval_months"] = b.IntervalMonths
	}
	if b.LastPaidDate != nil {
		row["last_paid_date"] = b.LastPaidDate.UTC().Format(time.RFC3339Nano)
	}
	if b.TransactionRef != "" {
		row["transaction_ref"] = b.TransactionRef
	}
	if b.ProofImage != "" {
		row["proof_image"] = b.ProofImage
	}
	if b.PaymentLink != "" {
		row["payment_link"] = b.PaymentLink
	}
	if b.WaiverAmount != 0 {
		row["waiver_amount"] = b.WaiverAmount
	}
	if b.AdminNotes != "" {
		row["admin_notes"] = b.AdminNotes
	}
	if b.LastNotifiedAt != nil {
		row["last_notified_at"] = b.LastNotifiedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

func parseRemoteTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
