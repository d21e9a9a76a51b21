package metadata

import (
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
)

// leaseTarget is the minimal surface both Container and Blob expose to the
// shared lease FSM, so Acquire/Renew/Change/Release/Break are written once
// (spec §4.7 "containers and blobs share one lease state machine").
type leaseTarget interface {
	leaseRecord() *Lease
}

func (c *Container) leaseRecord() *Lease { return &c.Lease }
func (b *Blob) leaseRecord() *Lease      { return &b.Lease }

// LeaseResult is what a successful lease-action handler needs to build its
// response headers (spec §4.7).
type LeaseResult struct {
	LeaseID    string
	State      apc.LeaseState
	BreakWaitS int
}

func normalizeDuration(secs int) (int, time.Duration, bool) {
	if secs == -1 {
		return -1, 0, true
	}
	return secs, time.Duration(secs) * time.Second, false
}

// acquireLease implements x-ms-lease-action: acquire (spec §4.7). duration
// is -1 for an infinite lease, else 15-60 seconds (validated by the
// handler layer).
func acquireLease(l *Lease, leaseID string, duration int) (*LeaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	switch l.stateLocked(now) {
	case apc.LeaseAvailable, apc.LeaseExpired, apc.LeaseBroken, "":
		id := leaseID
		if id == "" {
			id = cmn.NewLeaseID()
		}
		secs, dur, infinite := normalizeDuration(duration)
		l.rawState = apc.LeaseLeased
		l.LeaseID = id
		l.DurationSecs = secs
		l.HasExpiry = !infinite
		if !infinite {
			l.ExpiresAt = now.Add(dur)
		}
		return &LeaseResult{LeaseID: id, State: apc.LeaseLeased}, nil
	default:
		return nil, cmn.NewErr(cmn.ErrLeaseAlreadyPresent)
	}
}

// renewLease implements x-ms-lease-action: renew.
func renewLease(l *Lease, leaseID string) (*LeaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	st := l.stateLocked(now)
	if st != apc.LeaseLeased && st != apc.LeaseExpired {
		return nil, cmn.NewErr(cmn.ErrLeaseNotPresentWithLeaseOperation)
	}
	if l.LeaseID != leaseID {
		return nil, cmn.NewErr(cmn.ErrLeaseIDMismatchWithLeaseOperation)
	}
	l.rawState = apc.LeaseLeased
	if l.HasExpiry {
		l.ExpiresAt = now.Add(time.Duration(l.DurationSecs) * time.Second)
	}
	return &LeaseResult{LeaseID: l.LeaseID, State: apc.LeaseLeased}, nil
}

// changeLease implements x-ms-lease-action: change — swaps the lease id
// while keeping the lease held (spec §4.7).
func changeLease(l *Lease, leaseID, proposedID string) (*LeaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	st := l.stateLocked(now)
	if st != apc.LeaseLeased && st != apc.LeaseBreaking {
		return nil, cmn.NewErr(cmn.ErrLeaseNotPresentWithLeaseOperation)
	}
	if l.LeaseID != leaseID {
		return nil, cmn.NewErr(cmn.ErrLeaseIDMismatchWithLeaseOperation)
	}
	l.LeaseID = proposedID
	return &LeaseResult{LeaseID: l.LeaseID, State: st}, nil
}

// releaseLease implements x-ms-lease-action: release.
func releaseLease(l *Lease, leaseID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	st := l.stateLocked(now)
	if st != apc.LeaseLeased && st != apc.LeaseBreaking {
		return cmn.NewErr(cmn.ErrLeaseNotPresentWithLeaseOperation)
	}
	if l.LeaseID != leaseID {
		return cmn.NewErr(cmn.ErrLeaseIDMismatchWithLeaseOperation)
	}
	*l = Lease{}
	return nil
}

// breakLease implements x-ms-lease-action: break. breakPeriod is the
// client-requested break period in seconds, or -1 to use the remaining
// lease duration / a fixed default for infinite leases (spec §4.7).
func breakLease(l *Lease, breakPeriod int) (*LeaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	st := l.stateLocked(now)
	if st != apc.LeaseLeased && st != apc.LeaseBreaking {
		return nil, cmn.NewErr(cmn.ErrLeaseNotPresentWithLeaseOperation)
	}
	if st == apc.LeaseBreaking {
		wait := int(l.BreakExpiry.Sub(now).Seconds())
		if wait < 0 {
			wait = 0
		}
		return &LeaseResult{LeaseID: l.LeaseID, State: apc.LeaseBreaking, BreakWaitS: wait}, nil
	}
	wait := 60
	if l.HasExpiry {
		remaining := int(l.ExpiresAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		wait = remaining
	}
	if breakPeriod >= 0 && breakPeriod <= wait {
		wait = breakPeriod
	}
	l.rawState = apc.LeaseBreaking
	l.HasBreakTimer = true
	l.BreakExpiry = now.Add(time.Duration(wait) * time.Second)
	return &LeaseResult{LeaseID: l.LeaseID, State: apc.LeaseBreaking, BreakWaitS: wait}, nil
}

// AcquireContainerLease and friends below adapt the shared FSM functions to
// the metadata store, taking the top-level lock only long enough to find
// the record — the FSM itself serializes on the record's own Lease mutex.

func (s *Store) AcquireContainerLease(account, name, leaseID string, duration int) (*LeaseResult, error) {
	c, err := s.GetContainer(account, name)
	if err != nil {
		return nil, err
	}
	return acquireLease(&c.Lease, leaseID, duration)
}

func (s *Store) RenewContainerLease(account, name, leaseID string) (*LeaseResult, error) {
	c, err := s.GetContainer(account, name)
	if err != nil {
		return nil, err
	}
	return renewLease(&c.Lease, leaseID)
}

func (s *Store) ChangeContainerLease(account, name, leaseID, proposedID string) (*LeaseResult, error) {
	c, err := s.GetContainer(account, name)
	if err != nil {
		return nil, err
	}
	return changeLease(&c.Lease, leaseID, proposedID)
}

func (s *Store) ReleaseContainerLease(account, name, leaseID string) error {
	c, err := s.GetContainer(account, name)
	if err != nil {
		return err
	}
	return releaseLease(&c.Lease, leaseID)
}

func (s *Store) BreakContainerLease(account, name string, breakPeriod int) (*LeaseResult, error) {
	c, err := s.GetContainer(account, name)
	if err != nil {
		return nil, err
	}
	return breakLease(&c.Lease, breakPeriod)
}

func (s *Store) AcquireBlobLease(account, container, name, leaseID string, duration int) (*LeaseResult, error) {
	b, err := s.GetBlob(account, container, name, "")
	if err != nil {
		return nil, err
	}
	return acquireLease(&b.Lease, leaseID, duration)
}

func (s *Store) RenewBlobLease(account, container, name, leaseID string) (*LeaseResult, error) {
	b, err := s.GetBlob(account, container, name, "")
	if err != nil {
		return nil, err
	}
	return renewLease(&b.Lease, leaseID)
}

func (s *Store) ChangeBlobLease(account, container, name, leaseID, proposedID string) (*LeaseResult, error) {
	b, err := s.GetBlob(account, container, name, "")
	if err != nil {
		return nil, err
	}
	return changeLease(&b.Lease, leaseID, proposedID)
}

func (s *Store) ReleaseBlobLease(account, container, name, leaseID string) error {
	b, err := s.GetBlob(account, container, name, "")
	if err != nil {
		return err
	}
	return releaseLease(&b.Lease, leaseID)
}

func (s *Store) BreakBlobLease(account, container, name string, breakPeriod int) (*LeaseResult, error) {
	b, err := s.GetBlob(account, container, name, "")
	if err != nil {
		return nil, err
	}
	return breakLease(&b.Lease, breakPeriod)
}

// CheckLeaseForWrite validates the x-ms-lease-id header a mutating request
// supplied against a record's current lease state (spec §4.7 "a write
// against a leased resource must present the matching lease id; a write
// against an unleased resource must not present one"). target is *Container
// or *Blob.
func CheckLeaseForWrite(target leaseTarget, suppliedLeaseID string, missingErr, mismatchErr cmn.ErrorCode) error {
	l := target.leaseRecord()
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stateLocked(time.Now())
	locked := st == apc.LeaseLeased || st == apc.LeaseBreaking
	if locked {
		if suppliedLeaseID == "" {
			return cmn.NewErr(missingErr)
		}
		if suppliedLeaseID != l.LeaseID {
			return cmn.NewErr(mismatchErr)
		}
		return nil
	}
	if suppliedLeaseID != "" {
		return cmn.NewErr(mismatchErr)
	}
	return nil
}
