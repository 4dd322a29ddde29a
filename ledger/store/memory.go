// Package store provides in-memory implementations of the ledger store
// interfaces (testing/dev), including fault-injecting wrappers used to
// exercise the engine's rollback and partial-failure paths.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workday-ledger/ledger"
)

// =============================================================================
// MEMORY WORK RECORD STORE
// =============================================================================

type MemoryWorkRecords struct {
	mu      sync.RWMutex
	records map[string]ledger.WorkRecord
}

func NewMemoryWorkRecords() *MemoryWorkRecords {
	return &MemoryWorkRecords{records: make(map[string]ledger.WorkRecord)}
}

func (m *MemoryWorkRecords) Get(_ context.Context, id string) (*ledger.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, &ledger.NotFoundError{Collection: "work_records", ID: id}
	}
	out := cloneWorkRecord(rec)
	return &out, nil
}

func (m *MemoryWorkRecords) Put(_ context.Context, rec ledger.WorkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = cloneWorkRecord(rec)
	return nil
}

func (m *MemoryWorkRecords) ListAll(_ context.Context) ([]ledger.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.WorkRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneWorkRecord(rec))
	}
	// Deterministic order keeps scan output and tests stable.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneWorkRecord(rec ledger.WorkRecord) ledger.WorkRecord {
	if rec.CustomAmount != nil {
		amt := *rec.CustomAmount
		rec.CustomAmount = &amt
	}
	return rec
}

// =============================================================================
// MEMORY PAYMENT RECORD STORE
// =============================================================================

type MemoryPayments struct {
	mu      sync.RWMutex
	records map[string]ledger.PaymentRecord
}

func NewMemoryPayments() *MemoryPayments {
	return &MemoryPayments{records: make(map[string]ledger.PaymentRecord)}
}

func (m *MemoryPayments) Get(_ context.Context, id string) (*ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, &ledger.NotFoundError{Collection: "payment_records", ID: id}
	}
	out := clonePayment(rec)
	return &out, nil
}

func (m *MemoryPayments) Put(_ context.Context, rec ledger.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = clonePayment(rec)
	return nil
}

func (m *MemoryPayments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return &ledger.NotFoundError{Collection: "payment_records", ID: id}
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryPayments) ListAll(_ context.Context) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.PaymentRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, clonePayment(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func clonePayment(rec ledger.PaymentRecord) ledger.PaymentRecord {
	ids := make([]string, len(rec.WorkDayIDs))
	copy(ids, rec.WorkDayIDs)
	rec.WorkDayIDs = ids
	return rec
}

// =============================================================================
// MEMORY EMPLOYEE STORE
// =============================================================================

type MemoryEmployees struct {
	mu      sync.RWMutex
	records map[string]ledger.Employee
}

func NewMemoryEmployees() *MemoryEmployees {
	return &MemoryEmployees{records: make(map[string]ledger.Employee)}
}

func (m *MemoryEmployees) Get(_ context.Context, id string) (*ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.records[id]
	if !ok {
		return nil, &ledger.NotFoundError{Collection: "employees", ID: id}
	}
	out := cloneEmployee(emp)
	return &out, nil
}

func (m *MemoryEmployees) Put(_ context.Context, emp ledger.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[emp.ID] = cloneEmployee(emp)
	return nil
}

func (m *MemoryEmployees) ListAll(_ context.Context) ([]ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Employee, 0, len(m.records))
	for _, emp := range m.records {
		out = append(out, cloneEmployee(emp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneEmployee(emp ledger.Employee) ledger.Employee {
	if emp.PreviousWage != nil {
		w := *emp.PreviousWage
		emp.PreviousWage = &w
	}
	if emp.WageChangeDate != nil {
		d := *emp.WageChangeDate
		emp.WageChangeDate = &d
	}
	return emp
}

// =============================================================================
// FAULT INJECTION - fail the Nth write to exercise rollback paths
// =============================================================================

// FlakyWorkRecords wraps a WorkRecordStore and fails Put once a set
// number of writes have gone through. FailOnce exercises the rollback
// path (the compensating writes still succeed); FailFrom makes every
// later write fail too, which is how a rollback itself fails.
type FlakyWorkRecords struct {
	ledger.WorkRecordStore

	mu        sync.Mutex
	remaining int
	armed     bool
	once      bool
	failErr   error
}

func NewFlakyWorkRecords(inner ledger.WorkRecordStore) *FlakyWorkRecords {
	return &FlakyWorkRecords{WorkRecordStore: inner}
}

// FailOnce lets the next n Puts succeed, fails the one after with err,
// then disarms.
func (f *FlakyWorkRecords) FailOnce(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
	f.armed = true
	f.once = true
	f.failErr = err
}

// FailFrom lets the next n Puts succeed, then fails every Put with err
// until Disarm.
func (f *FlakyWorkRecords) FailFrom(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
	f.armed = true
	f.once = false
	f.failErr = err
}

// Disarm stops the failure injection.
func (f *FlakyWorkRecords) Disarm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = false
}

func (f *FlakyWorkRecords) Put(ctx context.Context, rec ledger.WorkRecord) error {
	f.mu.Lock()
	if f.armed {
		if f.remaining == 0 {
			err := f.failErr
			if f.once {
				f.armed = false
			}
			f.mu.Unlock()
			return err
		}
		f.remaining--
	}
	f.mu.Unlock()
	return f.WorkRecordStore.Put(ctx, rec)
}

// FlakyPayments fails payment writes and deletes on demand.
type FlakyPayments struct {
	ledger.PaymentRecordStore

	mu         sync.Mutex
	failPut    error
	failDelete error
}

func NewFlakyPayments(inner ledger.PaymentRecordStore) *FlakyPayments {
	return &FlakyPayments{PaymentRecordStore: inner}
}

func (f *FlakyPayments) FailPuts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut = err
}

func (f *FlakyPayments) FailDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = err
}

func (f *FlakyPayments) Put(ctx context.Context, rec ledger.PaymentRecord) error {
	f.mu.Lock()
	err := f.failPut
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.PaymentRecordStore.Put(ctx, rec)
}

func (f *FlakyPayments) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	err := f.failDelete
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.PaymentRecordStore.Delete(ctx, id)
}
