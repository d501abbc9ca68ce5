// test/mock/audit.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hearthguard/sentinel/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Append(ctx context.Context, recordType audit.RecordType, principalID string, payload interface{}) (audit.Record, error) {
	args := m.Called(ctx, recordType, principalID, payload)
	return args.Get(0).(audit.Record), args.Error(1)
}

func (m *MockAuditService) Export(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]audit.Record), args.Error(1)
}

func (m *MockAuditService) Verify(ctx context.Context) (audit.VerifyResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(audit.VerifyResult), args.Error(1)
}

// FailingRepository always fails Store, for fail-closed paths.
type FailingRepository struct {
	Err error
}

func (r *FailingRepository) Store(ctx context.Context, rec audit.Record) error {
	return r.Err
}

func (r *FailingRepository) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	return nil, r.Err
}
