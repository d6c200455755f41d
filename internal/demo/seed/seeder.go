package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/genbi/genbi/internal/storage"
)

type TableSummary struct {
	Table   string
	Key     string
	Rows    int
	Bytes   int
	Skipped bool
}

type Service struct {
	store storage.ObjectStore
	log   *slog.Logger
	cfg   Config
}

func NewService(cfg Config, store storage.ObjectStore, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, log: logger, cfg: cfg}, nil
}

var tableNames = []string{
	"advisors",
	"clients",
	"client_advisor_assignments",
	"portfolios",
	"products",
	"product_performance",
	"portfolio_holdings",
	"transactions",
	"thought_leadership_content",
	"role",
}

// TableNames lists the tables Run writes, in write order.
func TableNames() []string {
	return slices.Clone(tableNames)
}

// Run generates the dataset and writes one Parquet file per table. Tables
// that already have a file are left alone unless Overwrite is set, in which
// case every existing file of the table is removed first.
func (s *Service) Run(ctx context.Context) ([]TableSummary, error) {
	ds := NewGenerator(s.cfg).Generate()
	tables := []struct {
		name   string
		rows   int
		encode func() ([]byte, error)
	}{
		{"advisors", len(ds.Advisors), func() ([]byte, error) { return EncodeParquet(ds.Advisors) }},
		{"clients", len(ds.Clients), func() ([]byte, error) { return EncodeParquet(ds.Clients) }},
		{"client_advisor_assignments", len(ds.Assignments), func() ([]byte, error) { return EncodeParquet(ds.Assignments) }},
		{"portfolios", len(ds.Portfolios), func() ([]byte, error) { return EncodeParquet(ds.Portfolios) }},
		{"products", len(ds.Products), func() ([]byte, error) { return EncodeParquet(ds.Products) }},
		{"product_performance", len(ds.Performance), func() ([]byte, error) { return EncodeParquet(ds.Performance) }},
		{"portfolio_holdings", len(ds.Holdings), func() ([]byte, error) { return EncodeParquet(ds.Holdings) }},
		{"transactions", len(ds.Transactions), func() ([]byte, error) { return EncodeParquet(ds.Transactions) }},
		{"thought_leadership_content", len(ds.Content), func() ([]byte, error) { return EncodeParquet(ds.Content) }},
		{"role", len(ds.Logins), func() ([]byte, error) { return EncodeParquet(ds.Logins) }},
	}

	summaries := make([]TableSummary, 0, len(tables))
	for _, table := range tables {
		if table.rows == 0 {
			continue
		}
		summary, err := s.writeTable(ctx, table.name, table.rows, table.encode)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) writeTable(ctx context.Context, name string, rows int, encode func() ([]byte, error)) (TableSummary, error) {
	key, err := storage.BuildTableFilePath(name, 0, storage.FormatParquet)
	if err != nil {
		return TableSummary{}, err
	}
	summary := TableSummary{Table: name, Key: key, Rows: rows}

	if !s.cfg.Overwrite {
		_, err := s.store.Stat(ctx, key)
		switch {
		case err == nil:
			summary.Skipped = true
			s.log.InfoContext(ctx, "table already seeded", slog.String("table", name), slog.String("key", key))
			return summary, nil
		case !errors.Is(err, storage.ErrObjectNotFound):
			return TableSummary{}, fmt.Errorf("stat %s: %w", key, err)
		}
	} else if err := s.clearTable(ctx, name); err != nil {
		return TableSummary{}, err
	}

	data, err := encode()
	if err != nil {
		return TableSummary{}, fmt.Errorf("encode table %s: %w", name, err)
	}
	opts := storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata: map[string]string{
			storage.MetaRowCount: strconv.Itoa(rows),
			storage.MetaSeed:     strconv.FormatInt(s.cfg.Seed, 10),
		},
	}
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return TableSummary{}, fmt.Errorf("write table %s: %w", name, err)
	}
	summary.Bytes = len(data)
	s.log.InfoContext(ctx, "seeded table",
		slog.String("table", name),
		slog.String("key", key),
		slog.Int("rows", rows),
		slog.Int("bytes", len(data)),
	)
	return summary, nil
}

func (s *Service) clearTable(ctx context.Context, name string) error {
	prefix, err := storage.TablePrefix(name)
	if err != nil {
		return err
	}
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", prefix, err)
	}
	for _, object := range objects {
		if err := s.store.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("delete %s: %w", object.Key, err)
		}
	}
	return nil
}
