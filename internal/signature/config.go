package signature

import (
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/domain"
)

// Config drives the signature lifecycle and the bundle downloader.
type Config struct {
	Statuses     domain.StatusSets
	CacheTTL     time.Duration // bundle lifetime in the cache
	LockTimeout  time.Duration // max wait for a concurrent bundle build
	DefaultQuery string        // download query when none is given
	StatsWorkers int           // concurrent stats lookups
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Statuses:     domain.DefaultStatusSets(),
		CacheTTL:     24 * time.Hour,
		LockTimeout:  30 * time.Second,
		DefaultQuery: "status:DEPLOYED",
		StatsWorkers: 20,
	}
}
