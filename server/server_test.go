package server_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/blobemu/blobemu/auth"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/dispatch"
	"github.com/blobemu/blobemu/handlers"
	"github.com/blobemu/blobemu/server"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

// startEmulator boots a full Store/Handlers/Table/Server stack on a free
// local port, the end-to-end wiring the real cmd/blobemu binary performs at
// startup (spec §9).
func startEmulator(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	store := metadata.NewStore()
	extents := extent.NewMemStore(4, 0, false)
	h := &handlers.Handlers{Store: store, Extents: extents, Account: cmn.DefaultDevstoreAccount}
	table := &dispatch.Table{
		ListContainers: h.ListContainers,
		CreateContainer: h.CreateContainer,
		DeleteContainer: h.DeleteContainer,
		GetContainerProperties: h.GetContainerProperties,
		ListBlobs: h.ListBlobs,
		GetBlob: h.GetBlob,
		DeleteBlob: h.DeleteBlob,
		PutBlockBlob: h.PutBlockBlob,
		PutBlock: h.PutBlock,
		PutBlockList: h.PutBlockList,
		GetBlockList: h.GetBlockList,
	}
	keys := auth.KeyLookup(func(account string) (string, bool) {
		if account == cmn.DefaultDevstoreAccount {
			return cmn.DefaultDevstoreKey, true
		}
		return "", false
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port: %v", err)
	}
	addr = ln.Addr().String()
	ln.Close()

	srv := server.New(addr, table, keys, cmn.DefaultDevstoreAccount, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.ListenAndServe(ctx)
		close(done)
	}()
	// give the listener a moment to come up before the client dials it
	time.Sleep(50 * time.Millisecond)
	return addr, func() {
		cancel()
		<-done
	}
}

func newServiceURL(t *testing.T, addr string) azblob.ServiceURL {
	t.Helper()
	credential, err := azblob.NewSharedKeyCredential(cmn.DefaultDevstoreAccount, cmn.DefaultDevstoreKey)
	if err != nil {
		t.Fatalf("building shared key credential: %v", err)
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	u, err := url.Parse("http://" + addr + "/" + cmn.DefaultDevstoreAccount)
	if err != nil {
		t.Fatalf("parsing service URL: %v", err)
	}
	return azblob.NewServiceURL(*u, pipeline)
}

// TestAzureSDKRoundTrip drives the emulator with the real Azure Blob SDK
// client rather than a hand-rolled HTTP request, the wire-compatibility
// check spec §1 calls out as the point of this whole emulator.
func TestAzureSDKRoundTrip(t *testing.T) {
	addr, shutdown := startEmulator(t)
	defer shutdown()

	service := newServiceURL(t, addr)
	container := service.NewContainerURL("roundtrip")
	ctx := context.Background()

	if _, err := container.Create(ctx, azblob.Metadata{}, azblob.PublicAccessNone); err != nil {
		t.Fatalf("create container: %v", err)
	}

	blockBlob := container.NewBlockBlobURL("hello.txt")
	content := []byte("hello from the azure sdk")
	if _, err := blockBlob.Upload(ctx, bytes.NewReader(content), azblob.BlobHTTPHeaders{ContentType: "text/plain"},
		azblob.Metadata{}, azblob.BlobAccessConditions{}); err != nil {
		t.Fatalf("upload blob: %v", err)
	}

	dl, err := blockBlob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false)
	if err != nil {
		t.Fatalf("download blob: %v", err)
	}
	body := dl.Body(azblob.RetryReaderOptions{})
	defer body.Close()
	got, err := ioutil.ReadAll(body)
	if err != nil {
		t.Fatalf("reading downloaded body: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("downloaded content mismatch: got %q, want %q", got, content)
	}

	listResp, err := container.ListBlobsFlatSegment(ctx, azblob.Marker{}, azblob.ListBlobsSegmentOptions{})
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	found := false
	for _, item := range listResp.Segment.BlobItems {
		if item.Name == "hello.txt" {
			found = true
		}
	}
	if !found {
		t.Fatal("uploaded blob not present in listing")
	}

	if _, err := blockBlob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{}); err != nil {
		t.Fatalf("delete blob: %v", err)
	}
}

// TestAzureSDKStagedBlockCommit exercises Put Block + Put Block List
// through the SDK's staged-upload API.
func TestAzureSDKStagedBlockCommit(t *testing.T) {
	addr, shutdown := startEmulator(t)
	defer shutdown()

	service := newServiceURL(t, addr)
	container := service.NewContainerURL("staged")
	ctx := context.Background()
	if _, err := container.Create(ctx, azblob.Metadata{}, azblob.PublicAccessNone); err != nil {
		t.Fatalf("create container: %v", err)
	}

	blockBlob := container.NewBlockBlobURL("staged.bin")
	blockID := azblob.Base64BlockID([]byte("0000000000000001"))
	if _, err := blockBlob.StageBlock(ctx, blockID, bytes.NewReader([]byte("chunk-one")), azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{}); err != nil {
		t.Fatalf("stage block: %v", err)
	}
	if _, err := blockBlob.CommitBlockList(ctx, []string{blockID}, azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.AccessTierNone, nil, azblob.ClientProvidedKeyOptions{}); err != nil {
		t.Fatalf("commit block list: %v", err)
	}

	blockList, err := blockBlob.GetBlockList(ctx, azblob.BlockListAll, azblob.LeaseAccessConditions{})
	if err != nil {
		t.Fatalf("get block list: %v", err)
	}
	if len(blockList.CommittedBlocks) != 1 {
		t.Fatalf("want 1 committed block, got %d", len(blockList.CommittedBlocks))
	}
}
