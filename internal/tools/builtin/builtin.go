// Package builtin provides the default tool set: filesystem, system, web
// and utility tools.
package builtin

import (
	"net/http"
	"time"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// Categories used by the default tools.
const (
	CategoryFilesystem = "filesystem"
	CategorySystem     = "system"
	CategoryWeb        = "web"
	CategoryUtility    = "utility"
)

// Options configures the default tools.
type Options struct {
	// Workdir anchors relative paths for filesystem tools.
	Workdir        string
	CommandTimeout time.Duration
	FetchTimeout   time.Duration
	SearchResults  int

	// RequireConfirmationByDefault false downgrades every confirmation
	// tool to auto-approve.
	RequireConfirmationByDefault bool
	// AutoApproveSafeTools downgrades confirmation tools with risk <= 2.
	AutoApproveSafeTools bool

	HTTPClient *http.Client
	Now        func() time.Time
}

// OptionsFromConfig maps the tools and agent sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workdir:                      cfg.Tools.Workdir,
		CommandTimeout:               cfg.Tools.CommandTimeout.Duration(),
		FetchTimeout:                 cfg.Tools.FetchTimeout.Duration(),
		SearchResults:                cfg.Tools.SearchResults,
		RequireConfirmationByDefault: cfg.Tools.RequireConfirmationByDefault,
		AutoApproveSafeTools:         cfg.Agent.AutoApproveSafeTools,
	}
}

func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = "."
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 30 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.SearchResults <= 0 {
		o.SearchResults = 5
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Definitions returns the default tools with permissions adjusted by opts.
func Definitions(opts Options) []tools.Definition {
	opts.applyDefaults()

	defs := []tools.Definition{
		readFile(opts),
		writeFile(opts),
		listDirectory(opts),
		runCommand(opts),
		systemInfo(opts),
		webSearch(opts),
		fetchURL(opts),
		calculate(),
		generateRandom(),
		currentTime(opts),
	}

	for i := range defs {
		if defs[i].Permission != tools.RequireConfirmation {
			continue
		}
		if !opts.RequireConfirmationByDefault || (opts.AutoApproveSafeTools && defs[i].RiskLevel <= 2) {
			defs[i].Permission = tools.AutoApprove
		}
	}
	return defs
}

// Register adds every default tool to r.
func Register(r *tools.Registry, opts Options) error {
	for _, def := range Definitions(opts) {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
