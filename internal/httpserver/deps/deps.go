package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sigdesk/internal/ai"
	"github.com/MrSnakeDoc/sigdesk/internal/archive"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/index"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/scheduler"
	"github.com/MrSnakeDoc/sigdesk/internal/signature"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to trigger a reload
	AllowedCIDRS   []string         // IPs allowed to access infra endpoints
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout time.Duration    // per request deadline on /api routes
	Datastore      string           // "redis" | "memory"

	RedisClient    *redis.Client              // nil in memory mode
	MemoryIndex    *index.MemoryIndex         // nil in redis mode
	Auth           *auth.Validator            // bearer token validation
	Classification *classification.Engine     // access control
	Signatures     *signature.Manager         // signatures, sources, bundles, stats
	Archive        *archive.Manager           // archiving and related files
	AI             *ai.Client                 // AI summaries
	AIRate         float64                    // AI requests per second per client
	AIBurst        int                        // AI burst per client
	Catalog        *scheduler.CatalogReloader // service catalog status
	ReloadTrigger  chan struct{}              // Channel to trigger manual catalog reload
}
