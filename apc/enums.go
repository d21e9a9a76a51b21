package apc

// BlobType (spec §3, immutable after creation).
type BlobType string

const (
	BlockBlob  BlobType = "BlockBlob"
	PageBlob   BlobType = "PageBlob"
	AppendBlob BlobType = "AppendBlob"
)

// AccessTier (spec §3).
type AccessTier string

const (
	TierHot     AccessTier = "Hot"
	TierCool    AccessTier = "Cool"
	TierCold    AccessTier = "Cold"
	TierArchive AccessTier = "Archive"
)

// PublicAccess level (spec §3).
type PublicAccess string

const (
	PublicAccessNone      PublicAccess = "none"
	PublicAccessBlob      PublicAccess = "blob"
	PublicAccessContainer PublicAccess = "container"
)

// LeaseState (spec §4.7).
type LeaseState string

const (
	LeaseAvailable LeaseState = "available"
	LeaseLeased    LeaseState = "leased"
	LeaseBreaking  LeaseState = "breaking"
	LeaseBroken    LeaseState = "broken"
	LeaseExpired   LeaseState = "expired"
)

// LeaseStatus is the coarser status derived from LeaseState for the
// `x-ms-lease-status` header (locked iff Leased or Breaking).
type LeaseStatus string

const (
	LeaseStatusLocked   LeaseStatus = "locked"
	LeaseStatusUnlocked LeaseStatus = "unlocked"
)

func (s LeaseState) Status() LeaseStatus {
	if s == LeaseLeased || s == LeaseBreaking {
		return LeaseStatusLocked
	}
	return LeaseStatusUnlocked
}

// LeaseAction (spec §4.7, x-ms-lease-action).
type LeaseAction string

const (
	LeaseActionAcquire LeaseAction = "acquire"
	LeaseActionRenew   LeaseAction = "renew"
	LeaseActionChange  LeaseAction = "change"
	LeaseActionRelease LeaseAction = "release"
	LeaseActionBreak   LeaseAction = "break"
)

// CopyStatus (spec §3).
type CopyStatus string

const (
	CopySuccess CopyStatus = "success"
	CopyPending CopyStatus = "pending"
	CopyAborted CopyStatus = "aborted"
	CopyFailed  CopyStatus = "failed"
)

// PageWriteAction (spec §4.8, x-ms-page-write).
type PageWriteAction string

const (
	PageWriteUpdate PageWriteAction = "update"
	PageWriteClear  PageWriteAction = "clear"
)

// BlockListType (spec §4.8, blocklisttype query value).
type BlockListType string

const (
	BlockListCommitted   BlockListType = "committed"
	BlockListUncommitted BlockListType = "uncommitted"
	BlockListAll         BlockListType = "all"
)

// BlockListBucket identifies which of the three buckets a block reference
// in a <BlockList> request body belongs to (spec §4.3).
type BlockListBucket string

const (
	BlockLatest      BlockListBucket = "Latest"
	BlockCommitted   BlockListBucket = "Committed"
	BlockUncommitted BlockListBucket = "Uncommitted"
)

// PageSize is the fixed alignment unit for page blobs (spec §3).
const PageSize = 512

// MaxAppendBlockSize and MaxAppendBlockCount bound append-blob operations
// (spec §4.8).
const (
	MaxAppendBlockSize  = 100 << 20 // 100 MiB
	MaxAppendBlockCount = 50000
)

// MaxBlockIDDecodedLen bounds a staged block's decoded base64 id length
// (spec §3, §4.8).
const MaxBlockIDDecodedLen = 64
