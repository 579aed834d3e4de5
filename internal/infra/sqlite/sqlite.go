// Package sqlite provides the SQLite-backed local store, the
// authoritative on-device copy of bills, profile and configuration.
// All operations are synchronous; the remote mirror layers on top.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/port"
)

// Ensure Store implements port.LocalStore
var _ port.LocalStore = (*Store)(nil)

// Store implements port.LocalStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path. It creates the
// parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const billColumns = `id, user_id, name, amount, currency, due_date, frequency,
	interval_months, status, last_paid_date, transaction_ref, proof_image,
	payment_link, require_proof, is_disputed, waiver_amount, admin_notes,
	last_notified_at, created_at, updated_at`

// ListBills returns all bills owned by the user, soonest due first.
func (s *Store) ListBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE user_id = ? ORDER BY due_date ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}
	return bills, rows.Err()
}

// GetBill returns a single bill by id, scoped to its owner.
func (s *Store) GetBill(ctx context.Context, userID, billID string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE user_id = ? AND id = ?",
		userID, billID,
	)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "bill", ID: billID}
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// CountBills returns the number of bills owned by the user.
func (s *Store) CountBills(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bills WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}

// PutBill inserts or replaces a bill by id.
func (s *Store) PutBill(ctx context.Context, bill *domain.Bill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bills (`+billColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.UserID, bill.Name, nullFloat(bill.Amount), bill.Currency,
		bill.DueDate.Format(time.RFC3339Nano), string(bill.Frequency),
		bill.IntervalMonths, string(bill.Status), nullTime(bill.LastPaidDate),
		bill.TransactionRef, bill.ProofImage, bill.PaymentLink,
		boolToInt(bill.RequireProof), boolToInt(bill.IsDisputed),
		bill.WaiverAmount, bill.AdminNotes, nullTime(bill.LastNotifiedAt),
		bill.CreatedAt.Format(time.RFC3339Nano), bill.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put bill: %w", err)
	}
	return nil
}

// DeleteBill removes a bill by id. Deleting a missing id is a no-op.
func (s *Store) DeleteBill(ctx context.Context, userID, billID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM bills WHERE user_id = ? AND id = ?", userID, billID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return nil
}

// ReplaceBills swaps the user's entire collection in one transaction,
// used when cloud data is pulled after sign-in.
func (s *Store) ReplaceBills(ctx context.Context, userID string, bills []domain.Bill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bills WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear bills: %w", err)
	}

	for i := range bills {
		bill := &bills[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bills (`+billColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bill.ID, bill.UserID, bill.Name, nullFloat(bill.Amount), bill.Currency,
			bill.DueDate.Format(time.RFC3339Nano), string(bill.Frequency),
			bill.IntervalMonths, string(bill.Status), nullTime(bill.LastPaidDate),
			bill.TransactionRef, bill.ProofImage, bill.PaymentLink,
			boolToInt(bill.RequireProof), boolToInt(bill.IsDisputed),
			bill.WaiverAmount, bill.AdminNotes, nullTime(bill.LastNotifiedAt),
			bill.CreatedAt.Format(time.RFC3339Nano), bill.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}
	}

	return tx.Commit()
}

// GetProfile returns the stored profile, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var anon int
	var entitlement string
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, display_name, phone_number, is_anonymous, entitlement, currency
		FROM profiles WHERE uid = ?`, uid,
	).Scan(&p.UID, &p.Email, &p.DisplayName, &p.PhoneNumber, &anon, &entitlement, &p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: uid}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	p.IsAnonymous = anon != 0
	p.Entitlement = domain.Entitlement(entitlement)
	return &p, nil
}

// PutProfile inserts or replaces the profile.
func (s *Store) PutProfile(ctx context.Context, profile *domain.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (uid, email, display_name, phone_number, is_anonymous, entitlement, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.UID, profile.Email, profile.DisplayName, profile.PhoneNumber,
		boolToInt(profile.IsAnonymous), string(profile.Entitlement), profile.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// GetSecurityConfig reads the payment-validation flag; absent config
// defaults to disabled.
func (s *Store) GetSecurityConfig(ctx context.Context) (*domain.SecurityConfig, error) {
	value, err := s.GetConfigValue(ctx, domain.ConfigKeyPaymentValidation)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return &domain.SecurityConfig{}, nil
		}
		return nil, err
	}
	return &domain.SecurityConfig{PaymentValidationEnabled: value == "true"}, nil
}

// PutSecurityConfig stores the payment-validation flag.
func (s *Store) PutSecurityConfig(ctx context.Context, cfg *domain.SecurityConfig) error {
	value := "false"
	if cfg.PaymentValidationEnabled {
		value = "true"
	}
	return s.PutConfigValue(ctx, domain.ConfigKeyPaymentValidation, value)
}

// GetConfigValue reads one system config entry.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM system_config WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.ErrNotFound{Resource: "config", ID: key}
	}
	if err != nil {
		return "", fmt.Errorf("failed to query config: %w", err)
	}
	return value, nil
}

// PutConfigValue upserts one system config entry.
func (s *Store) PutConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO system_config (key, value) VALUES (?, ?)", key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put config: %w", err)
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*domain.Bill, error) {
	var b domain.Bill
	var amount sql.NullFloat64
	var dueDate, createdAt, updatedAt string
	var lastPaid, lastNotified sql.NullString
	var frequency, status string
	var requireProof, isDisputed int

	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &amount, &b.Currency, &dueDate, &frequency,
		&b.IntervalMonths, &status, &lastPaid, &b.TransactionRef, &b.ProofImage,
		&b.PaymentLink, &requireProof, &isDisputed, &b.WaiverAmount, &b.AdminNotes,
		&lastNotified, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		v := amount.Float64
		b.Amount = &v
	}
	b.Frequency = domain.Frequency(frequency)
	b.Status = domain.BillStatus(status)
	b.RequireProof = requireProof != 0
	b.IsDisputed = isDisputed != 0

	if b.DueDate, err = parseStoredTime(dueDate); err != nil {
		return nil, fmt.Errorf("bad due_date for bill %s: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for bill %s: %w", b.ID, err)
	}
	if b.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at for bill %s: %w", b.ID, err)
	}
	if lastPaid.Valid {
		t, err := parseStoredTime(lastPaid.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_paid_date for bill %s: %w", b.ID, err)
		}
		b.LastPaidDate = &t
	}
	if lastNotified.Valid {
		t, err := parseStoredTime(lastNotified.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_notified_at for bill %s: %w", b.ID, err)
		}
		b.LastNotifiedAt = &t
	}

	return &b, nil
}

func parseStoredTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
