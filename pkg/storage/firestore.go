package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gridbill/gridbill/pkg/log"
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Documents hold their entity as a JSON string; time-keyed
// collections use RFC3339 document IDs so range reads become document-ID
// range queries.
//
// Layout:
//
//	utilities/{utility}                      utility
//	utilities/{utility}/holidays/{date}      holiday (date is YYYY-MM-DD)
//	utilities/{utility}/tariffs/{name}       tariff with all charges inline
//	customers/{customer}                     customer profile
//	customers/{customer}/usage/{rfc3339}     one usage interval
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// setJSON writes an entity to a document as a JSON string plus any extra
// top-level fields used for queries.
func setJSON(ctx context.Context, doc *firestore.DocumentRef, entity any, extra map[string]any) error {
	jsonBytes, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", entity, err)
	}
	data := map[string]any{"json": string(jsonBytes)}
	for k, v := range extra {
		data[k] = v
	}
	if _, err := doc.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", doc.Path, err)
	}
	return nil
}

// docJSON extracts the JSON blob of a document into out.
func docJSON(doc *firestore.DocumentSnapshot, out any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// collectJSON drains an iterator, decoding each document via decode.
// Malformed documents are logged and skipped.
func collectJSON(ctx context.Context, iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error iterating documents: %w", err)
		}
		if err := decode(doc); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed document",
				slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		}
	}
}

func (f *FirestoreProvider) utilityDoc(name string) (*firestore.DocumentRef, error) {
	if name == "" {
		return nil, fmt.Errorf("utility name cannot be empty")
	}
	return f.client.Collection("utilities").Doc(name), nil
}

func (f *FirestoreProvider) customerDoc(name string) (*firestore.DocumentRef, error) {
	if name == "" {
		return nil, fmt.Errorf("customer name cannot be empty")
	}
	return f.client.Collection("customers").Doc(name), nil
}

// UpsertUtility creates or replaces a utility document.
func (f *FirestoreProvider) UpsertUtility(ctx context.Context, u types.Utility) error {
	doc, err := f.utilityDoc(u.Name)
	if err != nil {
		return err
	}
	return setJSON(ctx, doc, u, nil)
}

// GetUtility retrieves a utility by name.
func (f *FirestoreProvider) GetUtility(ctx context.Context, name string) (types.Utility, error) {
	ref, err := f.utilityDoc(name)
	if err != nil {
		return types.Utility{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Utility{}, fmt.Errorf("%w: %s", ErrUtilityNotFound, name)
		}
		return types.Utility{}, fmt.Errorf("failed to get utility %s: %w", name, err)
	}
	var u types.Utility
	if err := docJSON(doc, &u); err != nil {
		return types.Utility{}, err
	}
	return u, nil
}

// UpsertHoliday creates or replaces a holiday. The document ID is the local
// civil date, making (utility, date) naturally unique.
func (f *FirestoreProvider) UpsertHoliday(ctx context.Context, h types.Holiday) error {
	ref, err := f.utilityDoc(h.Utility)
	if err != nil {
		return err
	}
	return setJSON(ctx, ref.Collection("holidays").Doc(h.DateKey()), h, nil)
}

// ListHolidays retrieves the holiday calendar for a utility, ascending by
// date.
func (f *FirestoreProvider) ListHolidays(ctx context.Context, utility string) ([]types.Holiday, error) {
	ref, err := f.utilityDoc(utility)
	if err != nil {
		return nil, err
	}
	iter := ref.Collection("holidays").
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)

	var holidays []types.Holiday
	err = collectJSON(ctx, iter, func(doc *firestore.DocumentSnapshot) error {
		var h types.Holiday
		if err := docJSON(doc, &h); err != nil {
			return err
		}
		holidays = append(holidays, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holidays, nil
}

// UpsertTariff creates or replaces a tariff with all of its charges.
func (f *FirestoreProvider) UpsertTariff(ctx context.Context, t types.Tariff) error {
	ref, err := f.utilityDoc(t.Utility)
	if err != nil {
		return err
	}
	if t.Name == "" {
		return fmt.Errorf("tariff name cannot be empty")
	}
	return setJSON(ctx, ref.Collection("tariffs").Doc(t.Name), t, nil)
}

// GetTariff retrieves a tariff by utility and name.
func (f *FirestoreProvider) GetTariff(ctx context.Context, utility, name string) (types.Tariff, error) {
	ref, err := f.utilityDoc(utility)
	if err != nil {
		return types.Tariff{}, err
	}
	doc, err := ref.Collection("tariffs").Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Tariff{}, fmt.Errorf("%w: %s/%s", ErrTariffNotFound, utility, name)
		}
		return types.Tariff{}, fmt.Errorf("failed to get tariff %s/%s: %w", utility, name, err)
	}
	var t types.Tariff
	if err := docJSON(doc, &t); err != nil {
		return types.Tariff{}, err
	}
	return t, nil
}

// ListTariffs retrieves all tariffs of a utility.
func (f *FirestoreProvider) ListTariffs(ctx context.Context, utility string) ([]types.Tariff, error) {
	ref, err := f.utilityDoc(utility)
	if err != nil {
		return nil, err
	}
	iter := ref.Collection("tariffs").Documents(ctx)

	var tariffs []types.Tariff
	err = collectJSON(ctx, iter, func(doc *firestore.DocumentSnapshot) error {
		var t types.Tariff
		if err := docJSON(doc, &t); err != nil {
			return err
		}
		tariffs = append(tariffs, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tariffs, nil
}

// UpsertUsage writes usage intervals for a customer. The document ID is the
// RFC3339 interval start in UTC, enforcing uniqueness on (customer, start)
// and enabling range reads by document ID.
func (f *FirestoreProvider) UpsertUsage(ctx context.Context, customer string, intervals []types.UsageInterval) error {
	ref, err := f.customerDoc(customer)
	if err != nil {
		return err
	}
	coll := ref.Collection("usage")
	for _, iv := range intervals {
		docID := iv.Start.UTC().Format(time.RFC3339)
		err := setJSON(ctx, coll.Doc(docID), iv, map[string]any{
			"timestamp": iv.Start.UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert usage at %s: %w", docID, err)
		}
	}
	return nil
}

// GetUsage retrieves usage intervals whose start lies in [start, end),
// ascending.
func (f *FirestoreProvider) GetUsage(ctx context.Context, customer string, start, end time.Time) ([]types.UsageInterval, error) {
	ref, err := f.customerDoc(customer)
	if err != nil {
		return nil, err
	}
	coll := ref.Collection("usage")
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(start.UTC().Format(time.RFC3339))).
		Where(firestore.DocumentID, "<", coll.Doc(end.UTC().Format(time.RFC3339))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)

	var intervals []types.UsageInterval
	err = collectJSON(ctx, iter, func(doc *firestore.DocumentSnapshot) error {
		var iv types.UsageInterval
		if err := docJSON(doc, &iv); err != nil {
			return err
		}
		intervals = append(intervals, iv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

// GetLatestUsageTime retrieves the start of the last stored usage interval,
// or the zero time when the customer has none.
func (f *FirestoreProvider) GetLatestUsageTime(ctx context.Context, customer string) (time.Time, error) {
	ref, err := f.customerDoc(customer)
	if err != nil {
		return time.Time{}, err
	}
	// firestore automatically indexes top-level fields
	iter := ref.Collection("usage").
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest usage doc: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid usage doc id %s: %w", doc.Ref.ID, err)
	}
	return ts, nil
}

// UpsertCustomer creates or replaces a customer profile.
func (f *FirestoreProvider) UpsertCustomer(ctx context.Context, c types.Customer) error {
	doc, err := f.customerDoc(c.Name)
	if err != nil {
		return err
	}
	return setJSON(ctx, doc, c, nil)
}

// GetCustomer retrieves a customer profile by name.
func (f *FirestoreProvider) GetCustomer(ctx context.Context, name string) (types.Customer, error) {
	ref, err := f.customerDoc(name)
	if err != nil {
		return types.Customer{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, name)
		}
		return types.Customer{}, fmt.Errorf("failed to get customer %s: %w", name, err)
	}
	var c types.Customer
	if err := docJSON(doc, &c); err != nil {
		return types.Customer{}, err
	}
	return c, nil
}

// ListCustomers retrieves all customer profiles.
func (f *FirestoreProvider) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	iter := f.client.Collection("customers").Documents(ctx)

	var customers []types.Customer
	err := collectJSON(ctx, iter, func(doc *firestore.DocumentSnapshot) error {
		var c types.Customer
		if err := docJSON(doc, &c); err != nil {
			return err
		}
		customers = append(customers, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customers, nil
}
