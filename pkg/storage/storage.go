package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrUtilityNotFound  = errors.New("utility not found")
	ErrTariffNotFound   = errors.New("tariff not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// Database defines the interface for the persisted billing state: utilities
// and their holiday calendars, tariffs, customers, and interval usage.
// Usage is unique on (customer, interval start UTC).
type Database interface {
	// Utilities & holidays
	UpsertUtility(ctx context.Context, u types.Utility) error
	GetUtility(ctx context.Context, name string) (types.Utility, error)
	UpsertHoliday(ctx context.Context, h types.Holiday) error
	ListHolidays(ctx context.Context, utility string) ([]types.Holiday, error)

	// Tariffs
	UpsertTariff(ctx context.Context, t types.Tariff) error
	GetTariff(ctx context.Context, utility, name string) (types.Tariff, error)
	ListTariffs(ctx context.Context, utility string) ([]types.Tariff, error)

	// Usage
	UpsertUsage(ctx context.Context, customer string, intervals []types.UsageInterval) error
	GetUsage(ctx context.Context, customer string, start, end time.Time) ([]types.UsageInterval, error)
	GetLatestUsageTime(ctx context.Context, customer string) (time.Time, error)

	// Customers
	UpsertCustomer(ctx context.Context, c types.Customer) error
	GetCustomer(ctx context.Context, name string) (types.Customer, error)
	ListCustomers(ctx context.Context) ([]types.Customer, error)

	// Lifecycle
	Close() error
}

// Provider is a configured-but-unopened storage backend.
type Provider struct {
	name string
	fs   *FirestoreProvider
}

// Configured sets up the storage provider based on flags. The backend is
// initialised on Open, so binaries that never touch storage pay nothing.
func Configured() *Provider {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	p := &Provider{}
	fs := configuredFirestore()

	lflag.Do(func() {
		p.name = *provider
		p.fs = fs
	})

	return p
}

// Open validates and initialises the configured backend.
func (p *Provider) Open(ctx context.Context) (Database, error) {
	switch p.name {
	case "firestore":
		if err := p.fs.Validate(); err != nil {
			return nil, fmt.Errorf("firestore validation failed: %w", err)
		}
		if err := p.fs.Init(ctx); err != nil {
			return nil, fmt.Errorf("firestore init failed: %w", err)
		}
		return p.fs, nil
	}
	return nil, fmt.Errorf("unknown storage provider: %s", p.name)
}
