package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/port"
)

// memStore is an in-memory LocalStore for service tests.
type memStore struct {
	mu       sync.Mutex
	bills    map[string]domain.Bill // keyed by bill id
	profiles map[string]domain.UserProfile
	secCfg   domain.SecurityConfig
	config   map[string]string
	failPut  bool
}

var _ port.LocalStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		bills:    make(map[string]domain.Bill),
		profiles: make(map[string]domain.UserProfile),
		config:   make(map[string]string),
	}
}

func (m *memStore) ListBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bill
	for _, b := range m.bills {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *memStore) GetBill(ctx context.Context, userID, billID string) (*domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[billID]
	if !ok || b.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "bill", ID: billID}
	}
	out := b
	return &out, nil
}

func (m *memStore) CountBills(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bills {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) PutBill(ctx context.Context, bill *domain.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("disk full")
	}
	m.bills[bill.ID] = *bill
	return nil
}

func (m *memStore) DeleteBill(ctx context.Context, userID, billID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bills[billID]; ok && b.UserID == userID {
		delete(m.bills, billID)
	}
	return nil
}

func (m *memStore) ReplaceBills(ctx context.Context, userID string, bills []domain.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range m.bills {
		if b.UserID == userID {
			delete(m.bills, id)
		}
	}
	for _, b := range bills {
		m.bills[b.ID] = b
	}
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: uid}
	}
	out := p
	return &out, nil
}

func (m *memStore) PutProfile(ctx context.Context, profile *domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UID] = *profile
	return nil
}

func (m *memStore) GetSecurityConfig(ctx context.Context) (*domain.SecurityConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.secCfg
	return &cfg, nil
}

func (m *memStore) PutSecurityConfig(ctx context.Context, cfg *domain.SecurityConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secCfg = *cfg
	return nil
}

func (m *memStore) GetConfigValue(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config[key], nil
}

func (m *memStore) PutConfigValue(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// recordingRemote is a RemoteStore that records pushes and can be
// told to fail.
type recordingRemote struct {
	mu       sync.Mutex
	upserts  []domain.Bill
	deletes  []string
	profiles []domain.UserProfile
	remote   map[string][]domain.Bill // FetchBills fixture per user
	fail     bool
}

var _ port.RemoteStore = (*recordingRemote)(nil)

func newRecordingRemote() *recordingRemote {
	return &recordingRemote{remote: make(map[string][]domain.Bill)}
}

func (r *recordingRemote) FetchBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("network down")
	}
	return r.remote[userID], nil
}

func (r *recordingRemote) UpsertBill(ctx context.Context, bill *domain.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("network down")
	}
	r.upserts = append(r.upserts, *bill)
	return nil
}

func (r *recordingRemote) DeleteBill(ctx context.Context, billID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("network down")
	}
	r.deletes = append(r.deletes, billID)
	return nil
}

func (r *recordingRemote) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("network down")
	}
	return nil, nil
}

func (r *recordingRemote) UpsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("network down")
	}
	r.profiles = append(r.profiles, *profile)
	return nil
}

// remoteOrNil turns a nil *recordingRemote into a nil interface so
// disabled-mirror paths see an actual nil remote.
func remoteOrNil(r *recordingRemote) port.RemoteStore {
	if r == nil {
		return nil
	}
	return r
}

func (r *recordingRemote) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.upserts)
}

func (r *recordingRemote) deleteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deletes)
}
