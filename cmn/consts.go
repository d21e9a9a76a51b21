package cmn

// Fixed protocol version this emulator speaks on the wire (spec §6). Real
// Azure Storage accepts a range of versions; the emulator pins one and
// echoes it back on every response.
const APIVersion = "2021-10-04"

// Standard and x-ms- request/response header names (spec §6, §4.4, §4.8).
const (
	HdrAuthorization   = "Authorization"
	HdrDate            = "Date"
	HdrMSDate          = "x-ms-date"
	HdrMSVersion       = "x-ms-version"
	HdrMSRequestID     = "x-ms-request-id"
	HdrServer          = "Server"
	HdrContentLength   = "Content-Length"
	HdrContentType     = "Content-Type"
	HdrContentEncoding = "Content-Encoding"
	HdrContentLanguage = "Content-Language"
	HdrContentMD5      = "Content-MD5"
	HdrContentDisp     = "Content-Disposition"
	HdrCacheControl    = "Cache-Control"
	HdrRange           = "Range"
	HdrContentRange    = "Content-Range"
	HdrAcceptRanges    = "Accept-Ranges"
	HdrETag            = "ETag"
	HdrLastModified    = "Last-Modified"

	HdrIfMatch           = "If-Match"
	HdrIfNoneMatch       = "If-None-Match"
	HdrIfModifiedSince   = "If-Modified-Since"
	HdrIfUnmodifiedSince = "If-Unmodified-Since"

	HdrMSMeta               = "x-ms-meta-"
	HdrMSBlobType            = "x-ms-blob-type"
	HdrMSBlobContentLength   = "x-ms-blob-content-length"
	HdrMSBlobSequenceNumber  = "x-ms-blob-sequence-number"
	HdrMSSequenceNumberAction = "x-ms-sequence-number-action"
	HdrMSPageWrite           = "x-ms-page-write"
	HdrMSIfSeqNumLE          = "x-ms-if-sequence-number-le"
	HdrMSIfSeqNumLT          = "x-ms-if-sequence-number-lt"
	HdrMSIfSeqNumEQ          = "x-ms-if-sequence-number-eq"
	HdrMSCopySource          = "x-ms-copy-source"
	HdrMSCopyID              = "x-ms-copy-id"
	HdrMSCopyStatus          = "x-ms-copy-status"
	HdrMSCopyProgress        = "x-ms-copy-progress"
	HdrMSCopyCompletionTime  = "x-ms-copy-completion-time"
	HdrMSLeaseID             = "x-ms-lease-id"
	HdrMSLeaseAction         = "x-ms-lease-action"
	HdrMSLeaseDuration       = "x-ms-lease-duration"
	HdrMSLeaseBreakPeriod    = "x-ms-lease-break-period"
	HdrMSProposedLeaseID     = "x-ms-proposed-lease-id"
	HdrMSLeaseTime           = "x-ms-lease-time"
	HdrMSLeaseStatus         = "x-ms-lease-status"
	HdrMSLeaseState          = "x-ms-lease-state"
	HdrMSBlobPublicAccess    = "x-ms-blob-public-access"
	HdrMSHasImmutability     = "x-ms-has-immutability-policy"
	HdrMSHasLegalHold        = "x-ms-has-legal-hold"
	HdrMSSnapshot            = "x-ms-snapshot"
	HdrMSAccessTier          = "x-ms-access-tier"
	HdrMSAccessTierInferred  = "x-ms-access-tier-inferred"
	HdrMSServerEncrypted     = "x-ms-server-encrypted"
	HdrMSBlobAppendOffset    = "x-ms-blob-append-offset"
	HdrMSBlobCommittedBlockCount = "x-ms-blob-committed-block-count"
	HdrMSBlobConditionAppendPos  = "x-ms-blob-condition-appendpos"
	HdrMSBlobConditionMaxSize    = "x-ms-blob-condition-maxsize"
	HdrMSBlobSealed          = "x-ms-blob-sealed"
	HdrMSTagCount            = "x-ms-tag-count"
)

// Query parameter names used by dispatch and auth (spec §4.4, §4.5).
const (
	QpRestype       = "restype"
	QpComp          = "comp"
	QpPrefix        = "prefix"
	QpDelimiter     = "delimiter"
	QpMarker        = "marker"
	QpMaxResults    = "maxresults"
	QpBlockID       = "blockid"
	QpBlockListType = "blocklisttype"
	QpSnapshot      = "snapshot"
	QpTimeout       = "timeout"
)

// restype/comp wire values (spec §4.5).
const (
	RestypeService   = "service"
	RestypeContainer = "container"
	RestypeAccount   = "account"

	CompList              = "list"
	CompProperties        = "properties"
	CompMetadata          = "metadata"
	CompACL               = "acl"
	CompLease             = "lease"
	CompBlock             = "block"
	CompBlockList         = "blocklist"
	CompPage              = "page"
	CompPageList          = "pagelist"
	CompAppendBlock       = "appendblock"
	CompSeal              = "seal"
	CompSnapshot          = "snapshot"
	CompCopy              = "copy"
	CompTier              = "tier"
	CompTags              = "tags"
	CompUndelete          = "undelete"
	CompIncrementalCopy   = "incrementalcopy"
	CompStats             = "stats"
	CompBatch             = "batch"
	CompUserDelegationKey = "userdelegationkey"
)

// DefaultMaxResults is the default page size for listing operations
// (spec §4.6).
const DefaultMaxResults = 5000

// ServerBanner is the implementation banner returned in the Server header
// (spec §6).
const ServerBanner = "blobemu"

// Shared Access Signature query parameter names (spec §4.4): account-SAS,
// container/blob-SAS, and user-delegation-SAS (sk*) all draw from this set.
const (
	SASVersion        = "sv"
	SASServices       = "ss"
	SASResourceTypes  = "srt"
	SASResource       = "sr"
	SASPermissions    = "sp"
	SASStart          = "st"
	SASExpiry         = "se"
	SASProtocol       = "spr"
	SASIP             = "sip"
	SASIdentifier     = "si"
	SASSignature      = "sig"
	SASCacheControl   = "rscc"
	SASContentDisp    = "rscd"
	SASContentEnc     = "rsce"
	SASContentLang    = "rscl"
	SASContentType    = "rsct"
	SASSnapshotTime   = "snapshot"

	SASDelegKeyOID     = "skoid"
	SASDelegKeyTID     = "sktid"
	SASDelegKeyStart   = "skt"
	SASDelegKeyExpiry  = "ske"
	SASDelegKeyService = "sks"
	SASDelegKeyVersion = "skv"
)
