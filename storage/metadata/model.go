// Package metadata implements the concurrent metadata store (spec §4.2):
// containers, blobs (including snapshots), staged blocks, and per-account
// service properties, plus the data-model records those keyspaces hold
// (spec §3) and the lease state machine shared by containers and blobs
// (spec §4.7).
package metadata

import (
	"sync"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/storage/extent"
)

// Lease is the shared lease sub-record embedded in both Container and Blob
// (spec §4.7 "identical shape"). Expiry is stored as an absolute timestamp
// per spec §9's design note ("store absolute expiry timestamps rather than
// relative durations; 'expired' is a derived state, not a transition
// event"); State() below derives Expired lazily.
type Lease struct {
	mu            sync.Mutex
	rawState      apc.LeaseState
	LeaseID       string
	DurationSecs  int // -1 means infinite
	ExpiresAt     time.Time
	BreakExpiry   time.Time
	HasExpiry     bool
	HasBreakTimer bool
}

// State derives the effective lease state, collapsing a stale Leased
// record into Expired lazily on access (spec §4.7 last row).
func (l *Lease) State(now time.Time) apc.LeaseState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked(now)
}

func (l *Lease) stateLocked(now time.Time) apc.LeaseState {
	switch l.rawState {
	case apc.LeaseLeased:
		if l.HasExpiry && !now.Before(l.ExpiresAt) {
			l.rawState = apc.LeaseExpired
			return apc.LeaseExpired
		}
		return apc.LeaseLeased
	case apc.LeaseBreaking:
		if l.HasBreakTimer && !now.Before(l.BreakExpiry) {
			l.rawState = apc.LeaseBroken
			return apc.LeaseBroken
		}
		return apc.LeaseBreaking
	case "":
		return apc.LeaseAvailable
	default:
		return l.rawState
	}
}

// Container (spec §3).
type Container struct {
	Account      string
	Name         string
	ETag         string
	LastModified time.Time
	PublicAccess apc.PublicAccess
	Lease        Lease
	Metadata     cos.StrKVs
	Policies     []SignedIdentifier
	Deleted      bool
}

// SignedIdentifier is a stored-access-policy entry (spec §3).
type SignedIdentifier struct {
	ID         string
	Start      *time.Time
	Expiry     *time.Time
	Permission string
}

// CopyProperties (spec §3).
type CopyProperties struct {
	ID             string
	Source         string
	Status         apc.CopyStatus
	Progress       string
	CompletionTime time.Time
}

// Blob (spec §3). Snapshot == "" identifies the mutable base blob; any
// other value is the ISO-8601 timestamp identifying an immutable snapshot.
type Blob struct {
	Account  string
	Container string
	Name     string
	Snapshot string

	Type apc.BlobType

	ContentLength   int64
	ContentType     string
	ContentEncoding string
	ContentLanguage string
	ContentDisp     string
	CacheControl    string
	ContentMD5      []byte

	AccessTier apc.AccessTier

	ETag      string
	LastMod   time.Time
	CreatedOn time.Time

	Lease    Lease
	Metadata cos.StrKVs
	Tags     cos.StrKVs

	Copy CopyProperties

	Chunks []extent.Chunk

	// Page blob
	SequenceNumber int64
	// Append blob
	CommittedBlockCount int
	IsSealed            bool

	Deleted bool
}

// Block is a staged block (spec §3). Orthogonal to the committed blob until
// promoted by a commit-block-list, or discarded by one/by overwrite.
type Block struct {
	Account   string
	Container string
	BlobName  string
	ID        string // block id, base64-decoded from the client's value
	Size      int64
	Chunk     extent.Chunk
	StagedAt  time.Time
}

// ServiceProperties (spec §3), per account.
type ServiceProperties struct {
	Logging              LoggingConfig
	HourMetrics           MetricsConfig
	MinuteMetrics         MetricsConfig
	Cors                  []CorsRule
	DefaultServiceVersion string
	DeleteRetention       DeleteRetentionPolicy
	StaticWebsite         StaticWebsiteConfig
}

type LoggingConfig struct {
	Version                                        string
	Delete, Read, Write                            bool
	RetentionPolicyEnabled                         bool
	RetentionDays                                  int
}

type MetricsConfig struct {
	Version                 string
	Enabled                 bool
	IncludeAPIs             bool
	RetentionPolicyEnabled  bool
	RetentionDays           int
}

type CorsRule struct {
	AllowedOrigins  []string
	AllowedMethods  []string
	AllowedHeaders  []string
	ExposedHeaders  []string
	MaxAgeInSeconds int
}

type DeleteRetentionPolicy struct {
	Enabled bool
	Days    int
}

type StaticWebsiteConfig struct {
	Enabled            bool
	IndexDocument      string
	ErrorDocument404   string
}

// DefaultServiceProperties mirrors what a fresh devstore account reports.
func DefaultServiceProperties() *ServiceProperties {
	return &ServiceProperties{
		DefaultServiceVersion: cmn.APIVersion,
		Logging:               LoggingConfig{Version: "1.0"},
		HourMetrics:           MetricsConfig{Version: "1.0"},
		MinuteMetrics:         MetricsConfig{Version: "1.0"},
	}
}
