package storagemock

import (
	"context"
	"time"

	"github.com/gridbill/gridbill/pkg/storage"
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) UpsertUtility(ctx context.Context, u types.Utility) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockDatabase) GetUtility(ctx context.Context, name string) (types.Utility, error) {
	args := m.Called(ctx, name)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Utility), args.Error(1)
	}
	return types.Utility{}, nil
}

func (m *MockDatabase) UpsertHoliday(ctx context.Context, h types.Holiday) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockDatabase) ListHolidays(ctx context.Context, utility string) ([]types.Holiday, error) {
	args := m.Called(ctx, utility)
	if len(args) > 0 {
		return args.Get(0).([]types.Holiday), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertTariff(ctx context.Context, t types.Tariff) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockDatabase) GetTariff(ctx context.Context, utility, name string) (types.Tariff, error) {
	args := m.Called(ctx, utility, name)
	if len(args) > 0 {
		return args.Get(0).(types.Tariff), args.Error(1)
	}
	return types.Tariff{}, nil
}

func (m *MockDatabase) ListTariffs(ctx context.Context, utility string) ([]types.Tariff, error) {
	args := m.Called(ctx, utility)
	if len(args) > 0 {
		return args.Get(0).([]types.Tariff), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertUsage(ctx context.Context, customer string, intervals []types.UsageInterval) error {
	args := m.Called(ctx, customer, intervals)
	return args.Error(0)
}

func (m *MockDatabase) GetUsage(ctx context.Context, customer string, start, end time.Time) ([]types.UsageInterval, error) {
	args := m.Called(ctx, customer, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.UsageInterval), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetLatestUsageTime(ctx context.Context, customer string) (time.Time, error) {
	args := m.Called(ctx, customer)
	if len(args) > 0 {
		return args.Get(0).(time.Time), args.Error(1)
	}
	return time.Time{}, nil
}

func (m *MockDatabase) UpsertCustomer(ctx context.Context, c types.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockDatabase) GetCustomer(ctx context.Context, name string) (types.Customer, error) {
	args := m.Called(ctx, name)
	if len(args) > 0 {
		return args.Get(0).(types.Customer), args.Error(1)
	}
	return types.Customer{}, nil
}

func (m *MockDatabase) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.Customer), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
