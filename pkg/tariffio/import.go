package tariffio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gridbill/gridbill/pkg/log"
	"github.com/gridbill/gridbill/pkg/storage"
)

// ImportResult reports the per-tariff outcome of an import. Each parsed
// tariff lands in exactly one bucket.
type ImportResult struct {
	Created []string
	Updated []string
	Skipped []string
	Errors  []TariffError
}

// Import parses a tariff YAML document and persists the valid tariffs.
// Each tariff commits independently: one failing tariff is reported in the
// result without blocking its siblings. Existing tariffs are overwritten
// only when replaceExisting is set; otherwise they are skipped.
func Import(ctx context.Context, db storage.Database, content []byte, replaceExisting bool) (ImportResult, error) {
	var res ImportResult

	parsed, err := Parse(content)
	if err != nil {
		return res, err
	}
	res.Errors = parsed.Errors

	for _, t := range parsed.Tariffs {
		_, err := db.GetTariff(ctx, t.Utility, t.Name)
		exists := err == nil
		if err != nil && !errors.Is(err, storage.ErrTariffNotFound) {
			return res, fmt.Errorf("failed to check tariff %s/%s: %w", t.Utility, t.Name, err)
		}
		if exists && !replaceExisting {
			res.Skipped = append(res.Skipped, t.Name)
			continue
		}
		if err := db.UpsertTariff(ctx, t); err != nil {
			res.Errors = append(res.Errors, TariffError{
				Tariff:   t.Name,
				Messages: []string{err.Error()},
			})
			continue
		}
		if exists {
			res.Updated = append(res.Updated, t.Name)
		} else {
			res.Created = append(res.Created, t.Name)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "tariff import finished",
		slog.Int("created", len(res.Created)),
		slog.Int("updated", len(res.Updated)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}
