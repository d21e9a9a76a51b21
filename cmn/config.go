package cmn

import (
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Config is the whole of the emulator's runtime configuration, populated
// once from CLI flags (cmd/blobemu) and never mutated in place — updates go
// through GCO.BeginUpdate/CommitUpdate, mirroring the teacher's
// globalConfigOwner pattern (cmn/config.go) so handlers can read a
// consistent snapshot (cmn.GCO.Get()) without taking a lock per access.
type Config struct {
	Net      NetConfig      `json:"net"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
	Accounts AccountsConfig `json:"accounts"`
}

type NetConfig struct {
	Host                string `json:"host"`
	BlobPort            int    `json:"blob_port"`
	SkipAPIVersionCheck bool   `json:"skip_api_version_check"`
}

// StorageConfig covers spec §6's "in-memory, loose, location directory" CLI
// surface plus the domain-stack knobs SPEC_FULL.md adds (shard count,
// compression, request-body limit).
type StorageConfig struct {
	LocationDir     string        `json:"location_dir"`
	InMemory        bool          `json:"in_memory"`
	Loose           bool          `json:"loose"`
	ExtentShards    int           `json:"extent_shards"`
	CompressExtents bool          `json:"compress_extents"`
	MaxRequestBody  int64         `json:"max_request_body"`
	GCInterval      time.Duration `json:"gc_interval"`
}

type LogConfig struct {
	Debug  bool `json:"debug"`
	Silent bool `json:"silent"`
}

// AccountsConfig is the account->key table the server signs/verifies
// against (spec §4.4); loaded from a JSON keys-file the way the teacher
// loads its authn user/role tables (authn/utils.go's jsp-backed User/Role
// structs) — this table is plain JSON since it is operator-maintained
// input, not a wire-format document.
type AccountsConfig struct {
	KeysFile string            `json:"keys_file"`
	Keys     map[string]string `json:"-"` // account -> base64 key, loaded from KeysFile
}

// DefaultDevstoreAccount is the well-known local-development account/key
// pair every Azure Storage emulator ships (spec §8's concrete scenarios use
// it), pre-registered so a fresh emulator works out of the box.
const (
	DefaultDevstoreAccount = "devstoreaccount1"
	DefaultDevstoreKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

func DefaultConfig() *Config {
	return &Config{
		Net: NetConfig{
			Host:     "127.0.0.1",
			BlobPort: 10000,
		},
		Storage: StorageConfig{
			InMemory:       true,
			ExtentShards:   64,
			MaxRequestBody: 4 << 30, // 4GiB, Azure's committed block blob max
			GCInterval:     time.Minute,
		},
		Accounts: AccountsConfig{
			Keys: map[string]string{DefaultDevstoreAccount: DefaultDevstoreKey},
		},
	}
}

// Validate mirrors the teacher's Validator interface (cmn.Validator /
// cmn/config.go): every config section is independently checkable.
func (c *Config) Validate() error {
	if c.Net.BlobPort <= 0 || c.Net.BlobPort > 65535 {
		return errors.Errorf("invalid blob-port %d", c.Net.BlobPort)
	}
	if !c.Storage.InMemory && c.Storage.LocationDir == "" {
		return errors.New("location directory is required when -in-memory is false")
	}
	if c.Storage.ExtentShards <= 0 {
		return errors.New("extent-shards must be positive")
	}
	return nil
}

// LoadAccountKeys reads the JSON keys-file (account -> base64 key) and
// merges it over the default devstore account, using jsoniter the way the
// teacher decodes its on-disk JSON-ish config artifacts (cmn/config.go).
func (c *Config) LoadAccountKeys() error {
	if c.Accounts.KeysFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.Accounts.KeysFile)
	if err != nil {
		return errors.Wrapf(err, "reading keys file %q", c.Accounts.KeysFile)
	}
	extra := make(map[string]string)
	if err := jsoniter.Unmarshal(raw, &extra); err != nil {
		return errors.Wrapf(err, "parsing keys file %q", c.Accounts.KeysFile)
	}
	if c.Accounts.Keys == nil {
		c.Accounts.Keys = make(map[string]string)
	}
	for acct, key := range extra {
		c.Accounts.Keys[acct] = key
	}
	return nil
}

func (c *Config) AccountKey(account string) (string, bool) {
	k, ok := c.Accounts.Keys[account]
	return k, ok
}

// globalConfigOwner serializes config updates and publishes the current
// snapshot via an atomic pointer, exactly the role the teacher's
// globalConfigOwner plays (cmn/config.go) — trimmed of the cluster/override
// config machinery that has no equivalent in a single-process emulator.
type globalConfigOwner struct {
	mtx sync.Mutex
	cur atomic.Value
}

// GCO is the process-wide config owner; cmd/blobemu calls GCO.Put once at
// startup after flag parsing.
var GCO = &globalConfigOwner{}

func (g *globalConfigOwner) Get() *Config {
	v := g.cur.Load()
	if v == nil {
		return DefaultConfig()
	}
	return v.(*Config)
}

func (g *globalConfigOwner) Put(c *Config) { g.cur.Store(c) }

func (g *globalConfigOwner) BeginUpdate() *Config {
	g.mtx.Lock()
	cur := g.Get()
	clone := *cur
	return &clone
}

func (g *globalConfigOwner) CommitUpdate(c *Config) {
	g.cur.Store(c)
	g.mtx.Unlock()
}

func (g *globalConfigOwner) DiscardUpdate() { g.mtx.Unlock() }

// String renders a one-line summary for startup logging.
func (c *Config) String() string {
	mode := "in-memory"
	if !c.Storage.InMemory {
		mode = fmt.Sprintf("loose(%s)", c.Storage.LocationDir)
	}
	return fmt.Sprintf("host=%s blob-port=%d storage=%s shards=%d", c.Net.Host, c.Net.BlobPort, mode, c.Storage.ExtentShards)
}
