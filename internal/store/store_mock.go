package store

import (
	"context"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetReportStore implements the StoreManager interface.
func (m *MockStoreManager) GetReportStore() contract.ReportStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.ReportStore)
	return store
}

// GetCacheStore implements the StoreManager interface.
func (m *MockStoreManager) GetCacheStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockReportStore is a mock implementation of ReportStore for testing.
type MockReportStore struct {
	mock.Mock
}

var _ contract.ReportStore = &MockReportStore{} // Compile-time check

// SaveReport implements the ReportStore interface.
func (m *MockReportStore) SaveReport(ctx context.Context, record schema.ReportRecord, archive bool) error {
	args := m.Called(ctx, record, archive)
	return args.Error(0)
}

// TouchLastChecked implements the ReportStore interface.
func (m *MockReportStore) TouchLastChecked(ctx context.Context, repoID string, at time.Time) error {
	args := m.Called(ctx, repoID, at)
	return args.Error(0)
}

// GetLastScore implements the ReportStore interface.
func (m *MockReportStore) GetLastScore(ctx context.Context, repoID string) (*schema.StoredScore, error) {
	args := m.Called(ctx, repoID)
	score, _ := args.Get(0).(*schema.StoredScore)
	return score, args.Error(1)
}

// GetReport implements the ReportStore interface.
func (m *MockReportStore) GetReport(ctx context.Context, repoID string) (*schema.ReportRecord, error) {
	args := m.Called(ctx, repoID)
	rec, _ := args.Get(0).(*schema.ReportRecord)
	return rec, args.Error(1)
}

// ListReports implements the ReportStore interface.
func (m *MockReportStore) ListReports(ctx context.Context) ([]schema.ReportRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]schema.ReportRecord)
	return recs, args.Error(1)
}

// ListSnapshots implements the ReportStore interface.
func (m *MockReportStore) ListSnapshots(ctx context.Context, repoID string, limit int) ([]schema.Snapshot, error) {
	args := m.Called(ctx, repoID, limit)
	snaps, _ := args.Get(0).([]schema.Snapshot)
	return snaps, args.Error(1)
}

// BeginRun implements the ReportStore interface.
func (m *MockReportStore) BeginRun(ctx context.Context, runID string, startTime time.Time, configParams map[string]any) error {
	args := m.Called(ctx, runID, startTime, configParams)
	return args.Error(0)
}

// EndRun implements the ReportStore interface.
func (m *MockReportStore) EndRun(ctx context.Context, runID string, endTime time.Time, summary schema.SweepSummary) error {
	args := m.Called(ctx, runID, endTime, summary)
	return args.Error(0)
}

// GetAllRuns implements the ReportStore interface.
func (m *MockReportStore) GetAllRuns(ctx context.Context) ([]schema.SweepRunRecord, error) {
	args := m.Called(ctx)
	runs, _ := args.Get(0).([]schema.SweepRunRecord)
	return runs, args.Error(1)
}

// GetStatus implements the ReportStore interface.
func (m *MockReportStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the ReportStore interface.
func (m *MockReportStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
