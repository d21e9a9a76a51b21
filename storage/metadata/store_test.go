package metadata

import (
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/storage/extent"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Container lifecycle", func() {
	const account = "devstoreaccount1"

	var store *Store

	BeforeEach(func() {
		store = NewStore()
	})

	It("creates and fetches a container", func() {
		c, err := store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name).To(Equal("pics"))
		Expect(c.ETag).NotTo(BeEmpty())

		got, err := store.GetContainer(account, "pics")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(c))
	})

	It("rejects creating a container that already exists", func() {
		_, err := store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
		_, err = store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).To(HaveOccurred())
		Expect(cmn.AsBlobError(err).Code).To(Equal(cmn.ErrContainerAlreadyExists))
	})

	It("404s GetContainer for an unknown container", func() {
		_, err := store.GetContainer(account, "nope")
		Expect(cmn.AsBlobError(err).Code).To(Equal(cmn.ErrContainerNotFound))
	})

	It("deletes a container and everything beneath it", func() {
		_, err := store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
		_, err = store.PutBlob(account, "pics", "a.txt", NewBlobParams{Type: apc.BlockBlob, ContentLength: 3})
		Expect(err).NotTo(HaveOccurred())

		Expect(store.DeleteContainer(account, "pics")).To(Succeed())
		_, err = store.GetContainer(account, "pics")
		Expect(cmn.AsBlobError(err).Code).To(Equal(cmn.ErrContainerNotFound))
		_, err = store.GetBlob(account, "pics", "a.txt", "")
		Expect(err).To(HaveOccurred())
	})

	It("lists containers sorted and paginated", func() {
		for _, name := range []string{"charlie", "alpha", "bravo"} {
			_, err := store.CreateContainer(account, name, apc.PublicAccessNone, cos.NewStrKVs())
			Expect(err).NotTo(HaveOccurred())
		}
		items, next := store.ListContainers(account, "", "", 2)
		Expect(items).To(HaveLen(2))
		Expect(items[0].Name).To(Equal("alpha"))
		Expect(items[1].Name).To(Equal("bravo"))
		Expect(next).To(Equal("charlie"))

		rest, next2 := store.ListContainers(account, "", next, 2)
		Expect(rest).To(HaveLen(1))
		Expect(rest[0].Name).To(Equal("charlie"))
		Expect(next2).To(BeEmpty())
	})
})

var _ = Describe("Blob lifecycle", func() {
	const account = "devstoreaccount1"

	var store *Store

	BeforeEach(func() {
		store = NewStore()
		_, err := store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
	})

	It("puts and gets a block blob", func() {
		md := cos.NewStrKVs()
		md.Set("owner", "alice")
		b, err := store.PutBlob(account, "pics", "a.txt", NewBlobParams{
			Type:          apc.BlockBlob,
			ContentLength: 5,
			Metadata:      md,
			Chunks:        []extent.Chunk{{ExtentID: "e1", Count: 5}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.ContentLength).To(Equal(int64(5)))

		got, err := store.GetBlob(account, "pics", "a.txt", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Metadata.Get("owner")).To(Equal("alice"))
	})

	It("discards staged blocks when Put Blob overwrites", func() {
		store.StageBlock(account, "pics", "a.txt", "block1", extent.Chunk{ExtentID: "e1", Count: 4}, 4)
		_, err := store.PutBlob(account, "pics", "a.txt", NewBlobParams{Type: apc.BlockBlob})
		Expect(err).NotTo(HaveOccurred())
		staged, _, _ := store.BlockList(account, "pics", "a.txt")
		Expect(staged).To(BeEmpty())
	})

	It("snapshots a blob and keeps the snapshot independently readable", func() {
		_, err := store.PutBlob(account, "pics", "a.txt", NewBlobParams{Type: apc.BlockBlob, ContentLength: 1})
		Expect(err).NotTo(HaveOccurred())
		snap, err := store.Snapshot(account, "pics", "a.txt", cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Snapshot).NotTo(BeEmpty())

		_, err = store.GetBlob(account, "pics", "a.txt", snap.Snapshot)
		Expect(err).NotTo(HaveOccurred())
	})

	It("404s GetBlob for an unknown blob", func() {
		_, err := store.GetBlob(account, "pics", "nope.txt", "")
		Expect(cmn.AsBlobError(err).Code).To(Equal(cmn.ErrBlobNotFound))
	})
})

var _ = Describe("Lease state machine", func() {
	const account = "devstoreaccount1"

	var store *Store

	BeforeEach(func() {
		store = NewStore()
		_, err := store.CreateContainer(account, "pics", apc.PublicAccessNone, cos.NewStrKVs())
		Expect(err).NotTo(HaveOccurred())
	})

	It("acquires, renews, changes, and releases a container lease", func() {
		res, err := store.AcquireContainerLease(account, "pics", "", 30)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(apc.LeaseLeased))
		leaseID := res.LeaseID

		_, err = store.AcquireContainerLease(account, "pics", "", 30)
		Expect(cmn.AsBlobError(err).Code).To(Equal(cmn.ErrLeaseAlreadyPresent))

		_, err = store.RenewContainerLease(account, "pics", leaseID)
		Expect(err).NotTo(HaveOccurred())

		changed, err := store.ChangeContainerLease(account, "pics", leaseID, "11111111-1111-1111-1111-111111111111")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed.LeaseID).To(Equal("11111111-1111-1111-1111-111111111111"))

		Expect(store.ReleaseContainerLease(account, "pics", changed.LeaseID)).To(Succeed())

		c, err := store.GetContainer(account, "pics")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Lease.State(time.Now())).To(Equal(apc.LeaseAvailable))
	})

	It("breaks a lease into the breaking state", func() {
		res, err := store.AcquireContainerLease(account, "pics", "", -1)
		Expect(err).NotTo(HaveOccurred())
		brk, err := store.BreakContainerLease(account, "pics", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(brk.State).To(Equal(apc.LeaseBreaking))
		Expect(brk.LeaseID).To(Equal(res.LeaseID))
	})
})
