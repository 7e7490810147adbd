package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-newsletter/pkg/newsletter/objectkey"
)

// DefaultSweepMinAge protects uploads whose record may not be persisted yet.
const DefaultSweepMinAge = 24 * time.Hour

// ErrUnresolvedReferences is returned by a deleting sweep when a record URL
// does not map to a key under the current URL configuration. Every object
// could be in use, so nothing is deleted.
var ErrUnresolvedReferences = errors.New("newsletter asset urls do not resolve to storage keys")

// AssetRef identifies one stored object.
type AssetRef struct {
	Class AssetClass `json:"class"`
	Key   string     `json:"key"`
}

// SweepReport summarizes an orphan sweep.
type SweepReport struct {
	DryRun     bool       `json:"dry_run"`
	Scanned    int        `json:"scanned"`
	Referenced int        `json:"referenced"`
	TooRecent  int        `json:"too_recent"`
	Orphans    []AssetRef `json:"orphans"`
	Deleted    []AssetRef `json:"deleted"`
	Failed     []AssetRef `json:"failed"`

	// Unresolved lists record URLs that map to no storage key.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Sweeper removes stored assets that no newsletter references.
type Sweeper struct {
	service Service
	minAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithMinAge overrides DefaultSweepMinAge
func WithMinAge(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.minAge = d
	}
}

// WithSweepClock overrides the time source
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithSweepLogger sets the structured logger
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper creates a Sweeper
func NewSweeper(svc Service, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		service: svc,
		minAge:  DefaultSweepMinAge,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes unreferenced assets older than the minimum age. With dryRun
// nothing is deleted and the report lists what would be. A deleting sweep
// fails with ErrUnresolvedReferences before touching storage when any
// record URL cannot be mapped back to a key.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	records, err := s.service.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load newsletters: %w", err)
	}

	report := &SweepReport{DryRun: dryRun}
	referenced := make(map[AssetRef]bool)
	resolve := func(class AssetClass, rawURL string) {
		if rawURL == "" {
			return
		}
		key, ok := s.service.KeyFromURL(class, rawURL)
		if !ok {
			report.Unresolved = append(report.Unresolved, rawURL)
			return
		}
		referenced[AssetRef{Class: class, Key: key}] = true
	}
	for _, n := range records {
		resolve(AssetDocument, n.FileURL)
		if n.CoverImageURL != nil {
			resolve(AssetCover, *n.CoverImageURL)
		}
	}

	if len(report.Unresolved) > 0 {
		s.logger.Warn("Record URLs do not match the storage URL configuration",
			"count", len(report.Unresolved), "first", report.Unresolved[0])
		if !dryRun {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedReferences, strings.Join(report.Unresolved, ", "))
		}
	}

	cutoff := s.now().Add(-s.minAge)

	for _, class := range []AssetClass{AssetDocument, AssetCover} {
		objects, err := s.service.ListAssets(ctx, class)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", class, err)
		}

		for _, obj := range objects {
			report.Scanned++
			ref := AssetRef{Class: class, Key: obj.Key}
			if referenced[ref] {
				report.Referenced++
				continue
			}

			created, ok := objectkey.ParseTimestamp(obj.Key)
			if !ok {
				created = obj.LastModified
			}
			if created.After(cutoff) {
				report.TooRecent++
				continue
			}

			report.Orphans = append(report.Orphans, ref)
			if dryRun {
				continue
			}
			if err := s.service.DeleteAsset(ctx, class, obj.Key); err != nil {
				report.Failed = append(report.Failed, ref)
				continue
			}
			report.Deleted = append(report.Deleted, ref)
		}
	}

	s.logger.Info("Orphan sweep finished",
		"dry_run", dryRun,
		"scanned", report.Scanned,
		"orphans", len(report.Orphans),
		"deleted", len(report.Deleted),
		"failed", len(report.Failed),
		"unresolved", len(report.Unresolved))

	return report, nil
}
