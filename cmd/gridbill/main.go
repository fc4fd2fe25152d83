package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gridbill/gridbill/pkg/billing"
	"github.com/gridbill/gridbill/pkg/log"
	"github.com/gridbill/gridbill/pkg/storage"
	"github.com/gridbill/gridbill/pkg/tariffio"
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/gridbill/gridbill/pkg/usagecsv"
	"github.com/shopspring/decimal"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

// Exit codes: 0 success, 2 invalid input, 3 insufficient usage data,
// 4 internal failure, 130 interrupted.
const (
	exitOK          = 0
	exitInvalid     = 2
	exitMissingData = 3
	exitInternal    = 4
	exitInterrupted = 130
)

type flags struct {
	tariffYAML      *string
	tariffName      *string
	usageCSV        *string
	customer        *string
	timezone        *string
	billingDay      *int
	intervalMinutes *int
	periodStart     *string
	periodEnd       *string
	gapStrategy     *string
	holidayDates    *string
}

func main() {
	os.Exit(run())
}

func run() int {
	f := flags{
		tariffYAML:      lflag.String("tariff-yaml", "", "Path to the tariff YAML document (file mode)"),
		tariffName:      lflag.String("tariff", "", "Tariff to apply; the document's only tariff when omitted, or utility/name in storage mode"),
		usageCSV:        lflag.String("usage-csv", "", "Path to the interval usage CSV (file mode)"),
		customer:        lflag.String("customer", "", "Compute from storage for this customer instead of files"),
		timezone:        lflag.String("timezone", "UTC", "Customer IANA timezone (file mode)"),
		billingDay:      lflag.Int("billing-day", 31, "Last day included in each billing month (file mode)"),
		intervalMinutes: lflag.Int("interval-minutes", types.DefaultBillingIntervalMinutes, "Usage interval cadence in minutes (file mode)"),
		periodStart:     lflag.String("period-start", "", "First local civil date of the period (YYYY-MM-DD)"),
		periodEnd:       lflag.String("period-end", "", "Last local civil date of the period (YYYY-MM-DD), inclusive"),
		gapStrategy:     lflag.String("gap-strategy", string(types.GapExtrapolateLast), "Gap repair strategy (extrapolate_last, linear_interpolate)"),
		holidayDates:    lflag.String("holidays", "", "Comma-separated local holiday dates (YYYY-MM-DD, file mode)"),
	}

	store := storage.Configured()

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req, cleanup, err := buildRequest(ctx, f, store)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to assemble computation inputs", "error", err)
		return exitCode(err)
	}

	comp, err := billing.Compute(ctx, req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "bill computation failed", "error", err)
		return exitCode(err)
	}

	out := struct {
		Customer         string             `json:"customer,omitempty"`
		Tariff           string             `json:"tariff"`
		Months           []types.BillResult `json:"months"`
		GrandTotalUSD    decimal.Decimal    `json:"grandTotalUSD"`
		MissingIntervals int                `json:"missingIntervals"`
	}{
		Customer:         *f.customer,
		Tariff:           req.Tariff.Name,
		Months:           comp.Months,
		GrandTotalUSD:    comp.GrandTotal,
		MissingIntervals: comp.Gaps.TotalMissing,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to encode bill", "error", err)
		return exitInternal
	}
	return exitOK
}

// buildRequest assembles the computation inputs from either storage (when
// -customer is given) or local files.
func buildRequest(ctx context.Context, f flags, store *storage.Provider) (billing.Request, func(), error) {
	var req billing.Request

	start, end, err := parsePeriod(*f.periodStart, *f.periodEnd)
	if err != nil {
		return req, nil, err
	}
	req.PeriodStart = start
	req.PeriodEnd = end
	req.Strategy = types.GapStrategy(*f.gapStrategy)

	if *f.customer != "" {
		return requestFromStorage(ctx, f, store, req)
	}
	return requestFromFiles(ctx, f, req)
}

func requestFromFiles(ctx context.Context, f flags, req billing.Request) (billing.Request, func(), error) {
	if *f.tariffYAML == "" || *f.usageCSV == "" {
		return req, nil, fmt.Errorf("%w: -tariff-yaml and -usage-csv are required without -customer", types.ErrValidation)
	}

	req.Customer = types.Customer{
		Name:                   "cli",
		Timezone:               *f.timezone,
		BillingIntervalMinutes: *f.intervalMinutes,
		BillingDay:             *f.billingDay,
	}

	content, err := os.ReadFile(*f.tariffYAML)
	if err != nil {
		return req, nil, fmt.Errorf("%w: failed to read tariff document: %v", types.ErrValidation, err)
	}
	parsed, err := tariffio.Parse(content)
	if err != nil {
		return req, nil, err
	}
	for _, te := range parsed.Errors {
		log.Ctx(ctx).WarnContext(ctx, "skipping invalid tariff",
			slog.String("tariff", te.Tariff),
			slog.String("problems", strings.Join(te.Messages, "; ")))
	}
	req.Tariff, err = pickTariff(parsed.Tariffs, *f.tariffName)
	if err != nil {
		return req, nil, err
	}

	req.Holidays, err = parseHolidays(*f.holidayDates, req.Tariff.Utility)
	if err != nil {
		return req, nil, err
	}

	usageFile, err := os.Open(*f.usageCSV)
	if err != nil {
		return req, nil, fmt.Errorf("%w: failed to open usage CSV: %v", types.ErrValidation, err)
	}
	defer usageFile.Close()
	usage, err := usagecsv.Parse(usageFile)
	if err != nil {
		return req, nil, err
	}
	for _, re := range usage.Errors {
		log.Ctx(ctx).WarnContext(ctx, "skipping invalid usage row", slog.String("row", re.String()))
	}
	req.Usage = usage.Intervals
	return req, nil, nil
}

func requestFromStorage(ctx context.Context, f flags, store *storage.Provider, req billing.Request) (billing.Request, func(), error) {
	db, err := store.Open(ctx)
	if err != nil {
		return req, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}

	req.Customer, err = db.GetCustomer(ctx, *f.customer)
	if err != nil {
		return req, cleanup, err
	}

	ref := req.Customer.CurrentTariff
	if *f.tariffName != "" {
		ref = *f.tariffName
	}
	utility, name, ok := strings.Cut(ref, "/")
	if !ok {
		return req, cleanup, fmt.Errorf("%w: tariff reference %q must be utility/name", types.ErrValidation, ref)
	}
	req.Tariff, err = db.GetTariff(ctx, utility, name)
	if err != nil {
		return req, cleanup, err
	}

	req.Holidays, err = db.ListHolidays(ctx, utility)
	if err != nil {
		return req, cleanup, err
	}

	// Fetch with a day of slack on both sides: the billing period is local
	// civil dates and storage is keyed by UTC. Out-of-range intervals are
	// ignored downstream.
	req.Usage, err = db.GetUsage(ctx, req.Customer.Name,
		req.PeriodStart.AddDate(0, 0, -1), req.PeriodEnd.AddDate(0, 0, 2))
	if err != nil {
		return req, cleanup, err
	}
	return req, cleanup, nil
}

func parsePeriod(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: -period-start and -period-end are required", types.ErrValidation)
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid -period-start %q", types.ErrValidation, startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid -period-end %q", types.ErrValidation, endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: period end %s before start %s", types.ErrValidation, endStr, startStr)
	}
	return start, end, nil
}

func pickTariff(tariffs []types.Tariff, name string) (types.Tariff, error) {
	if name == "" {
		if len(tariffs) == 1 {
			return tariffs[0], nil
		}
		return types.Tariff{}, fmt.Errorf("%w: document has %d tariffs, pick one with -tariff", types.ErrValidation, len(tariffs))
	}
	for _, t := range tariffs {
		if t.Name == name {
			return t, nil
		}
	}
	return types.Tariff{}, fmt.Errorf("%w: tariff %q not found in document", types.ErrValidation, name)
}

func parseHolidays(dates, utility string) ([]types.Holiday, error) {
	if dates == "" {
		return nil, nil
	}
	var holidays []types.Holiday
	for _, s := range strings.Split(dates, ",") {
		s = strings.TrimSpace(s)
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid holiday date %q", types.ErrValidation, s)
		}
		holidays = append(holidays, types.Holiday{Utility: utility, Date: d})
	}
	return holidays, nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, billing.ErrCancelled), errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, billing.ErrZoneUnknown),
		errors.Is(err, billing.ErrInvalidStep),
		errors.Is(err, billing.ErrInconsistentUsage):
		return exitInvalid
	case errors.Is(err, billing.ErrMissingData),
		errors.Is(err, storage.ErrCustomerNotFound),
		errors.Is(err, storage.ErrTariffNotFound),
		errors.Is(err, storage.ErrUtilityNotFound):
		return exitMissingData
	}
	return exitInternal
}
