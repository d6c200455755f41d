package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/genbi/genbi/internal/storage"
)

// AuditPruner removes execution records older than a cutoff.
type AuditPruner interface {
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	RetentionInterval time.Duration
	IntegrityInterval time.Duration
	// AuditRetention is how long execution records are kept. Zero disables
	// pruning.
	AuditRetention time.Duration
	// Tables are checked for at least one readable data file.
	Tables []string
}

// Service runs the background housekeeping of the API: pruning the audit
// trail and checking that the local engine's tables are present in the
// object store. Either dependency may be nil, which disables its job.
type Service struct {
	Audit       AuditPruner
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type RetentionSummary struct {
	Cutoff         time.Time `json:"cutoff"`
	RecordsDeleted int64     `json:"records_deleted"`
}

type IntegritySummary struct {
	TablesChecked       int `json:"tables_checked"`
	FilesChecked        int `json:"files_checked"`
	MissingTables       int `json:"missing_tables"`
	SizeMismatchFiles   int `json:"size_mismatch_files"`
	OperationalFailures int `json:"operational_failures"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	var retentionC, integrityC <-chan time.Time
	if s.retentionEnabled() {
		ticker := time.NewTicker(s.Config.RetentionInterval)
		defer ticker.Stop()
		retentionC = ticker.C
	}
	if s.ObjectStore != nil && len(s.Config.Tables) > 0 {
		ticker := time.NewTicker(s.Config.IntegrityInterval)
		defer ticker.Stop()
		integrityC = ticker.C
	}
	if retentionC == nil && integrityC == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retentionC:
			summary, err := s.RunRetentionOnce(ctx)
			if err != nil {
				s.Logger.ErrorContext(ctx, "audit retention failed", slog.Any("error", err))
				continue
			}
			s.Logger.InfoContext(ctx, "audit retention completed", slog.Any("summary", summary))
		case <-integrityC:
			summary, err := s.RunIntegrityCheckOnce(ctx)
			if err != nil {
				s.Logger.ErrorContext(ctx, "dataset integrity check failed", slog.Any("error", err), slog.Any("summary", summary))
				continue
			}
			s.Logger.DebugContext(ctx, "dataset integrity check completed", slog.Any("summary", summary))
		}
	}
}

// RunRetentionOnce deletes execution records that finished more than
// AuditRetention ago.
func (s *Service) RunRetentionOnce(ctx context.Context) (RetentionSummary, error) {
	s.ensureDefaults()
	if s.Audit == nil {
		return RetentionSummary{}, fmt.Errorf("audit repository is required")
	}
	if s.Config.AuditRetention <= 0 {
		return RetentionSummary{}, fmt.Errorf("audit retention is disabled")
	}

	cutoff := s.Clock().Add(-s.Config.AuditRetention)
	deleted, err := s.Audit.DeleteExecutionsBefore(ctx, cutoff)
	if err != nil {
		retentionRunsTotal.WithLabelValues("failed").Inc()
		return RetentionSummary{Cutoff: cutoff}, err
	}
	retentionRunsTotal.WithLabelValues("completed").Inc()
	if deleted > 0 {
		auditRecordsPrunedTotal.Add(float64(deleted))
	}
	return RetentionSummary{Cutoff: cutoff, RecordsDeleted: deleted}, nil
}

// RunIntegrityCheckOnce lists every configured table and stats each of its
// data files. A table without data files, or a file whose size differs from
// its listing, is reported as an error.
func (s *Service) RunIntegrityCheckOnce(ctx context.Context) (IntegritySummary, error) {
	s.ensureDefaults()
	if s.ObjectStore == nil {
		return IntegritySummary{}, fmt.Errorf("object store is required")
	}

	summary := IntegritySummary{}
	failures := make([]string, 0)
	for _, table := range s.Config.Tables {
		prefix, err := storage.TablePrefix(table)
		if err != nil {
			summary.OperationalFailures++
			failures = append(failures, err.Error())
			continue
		}
		summary.TablesChecked++

		objects, err := s.ObjectStore.List(ctx, prefix)
		if err != nil {
			summary.OperationalFailures++
			failures = append(failures, fmt.Sprintf("list %s: %v", table, err))
			continue
		}

		dataFiles := 0
		for _, object := range objects {
			if _, _, ok := storage.ParseTableFile(object.Key); !ok {
				continue
			}
			dataFiles++
			summary.FilesChecked++

			info, err := s.ObjectStore.Stat(ctx, object.Key)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotFound) {
					summary.SizeMismatchFiles++
					failures = append(failures, fmt.Sprintf("file %s disappeared", object.Key))
					continue
				}
				summary.OperationalFailures++
				failures = append(failures, fmt.Sprintf("stat %s: %v", object.Key, err))
				continue
			}
			if info.Size != object.Size || info.Size == 0 {
				summary.SizeMismatchFiles++
				failures = append(failures, fmt.Sprintf("file %s size %d, listed %d", object.Key, info.Size, object.Size))
			}
		}
		if dataFiles == 0 {
			summary.MissingTables++
			failures = append(failures, fmt.Sprintf("table %s has no data files", table))
		}
	}

	integrityTablesCheckedTotal.Add(float64(summary.TablesChecked))
	if summary.MissingTables > 0 {
		integrityMissingTablesTotal.Add(float64(summary.MissingTables))
	}
	if len(failures) > 0 {
		integrityRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("integrity check found %d problem(s): %s", len(failures), strings.Join(failures, "; "))
	}
	integrityRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

func (s *Service) retentionEnabled() bool {
	return s.Audit != nil && s.Config.AuditRetention > 0
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if s.Config.RetentionInterval <= 0 {
		s.Config.RetentionInterval = time.Hour
	}
	if s.Config.IntegrityInterval <= 0 {
		s.Config.IntegrityInterval = 15 * time.Minute
	}
}
