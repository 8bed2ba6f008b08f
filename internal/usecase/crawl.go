package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// Crawler walks the directory's paginated user listing and writes the worklist
// snapshot the harvest stage consumes.
type Crawler struct {
	source ports.DirectorySource
	cfg    config.CrawlConfig
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewCrawler wires the directory source and crawl settings.
func NewCrawler(source ports.DirectorySource, cfg config.CrawlConfig, logger *slog.Logger) *Crawler {
	return &Crawler{
		source: source,
		cfg:    cfg,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Run fetches pages 1..TotalPages with a politeness delay in between. The
// first non-success stops pagination but keeps what was already fetched, so a
// flaky final page does not throw away an hour of crawling. The snapshot is
// written as one JSON profile per line.
func (c *Crawler) Run(ctx context.Context, worklistPath string) (int, error) {
	var profiles []domain.Profile
	for page := 1; page <= c.cfg.TotalPages; page++ {
		batch, err := c.source.SearchPage(ctx, page)
		if err != nil {
			c.logger.Warn("listing page failed, stopping crawl", "page", page, "error", err)
			break
		}

		profiles = append(profiles, batch...)
		c.logger.Info("fetched listing page", "page", page, "of", c.cfg.TotalPages, "profiles", len(batch))

		if page < c.cfg.TotalPages {
			c.sleep(c.cfg.Delay())
		}
	}

	if err := writeWorklist(worklistPath, profiles); err != nil {
		return 0, err
	}
	return len(profiles), nil
}

func writeWorklist(path string, profiles []domain.Profile) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worklist dir %s: %w", dir, err)
		}
	}

	var b strings.Builder
	for _, profile := range profiles {
		line, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("marshal profile %s: %w", profile.DiscoveryID, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write worklist %s: %w", path, err)
	}
	return nil
}
