package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

func newHandlers() *Handlers {
	return &Handlers{
		Store:   metadata.NewStore(),
		Extents: extent.NewMemStore(4, 0, false),
		Account: "devstoreaccount1",
	}
}

func newCtx(method, rawPath string, body string, headers map[string]string) *reqctx.Context {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://127.0.0.1:10000"+rawPath, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx := reqctx.Parse(req)
	ctx.RequestID = "test-request-id"
	return ctx
}

func TestCreateContainerThenListContainers(t *testing.T) {
	h := newHandlers()

	ctx := newCtx(http.MethodPut, "/devstoreaccount1/pics?restype=container", "", nil)
	w := httptest.NewRecorder()
	if err := h.CreateContainer(w, ctx); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", w.Code)
	}

	listCtx := newCtx(http.MethodGet, "/devstoreaccount1?comp=list", "", nil)
	w2 := httptest.NewRecorder()
	if err := h.ListContainers(w2, listCtx); err != nil {
		t.Fatalf("ListContainers: %v", err)
	}
	if !strings.Contains(w2.Body.String(), "<Name>pics</Name>") {
		t.Fatalf("expected container in listing, got:\n%s", w2.Body.String())
	}
}

func TestCreateContainerRejectsBadName(t *testing.T) {
	h := newHandlers()
	ctx := newCtx(http.MethodPut, "/devstoreaccount1/A?restype=container", "", nil)
	w := httptest.NewRecorder()
	err := h.CreateContainer(w, ctx)
	if err == nil {
		t.Fatal("expected a validation error for an uppercase, too-short container name")
	}
	if cmn.AsBlobError(err).Code != cmn.ErrInvalidResourceName {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestPutAndGetBlockBlobRoundTrip(t *testing.T) {
	h := newHandlers()
	ctx := newCtx(http.MethodPut, "/devstoreaccount1/pics?restype=container", "", nil)
	if err := h.CreateContainer(httptest.NewRecorder(), ctx); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}

	putCtx := newCtx(http.MethodPut, "/devstoreaccount1/pics/a.txt", "hello world",
		map[string]string{cmn.HdrMSBlobType: "BlockBlob"})
	w := httptest.NewRecorder()
	if err := h.PutBlockBlob(w, putCtx); err != nil {
		t.Fatalf("PutBlockBlob: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", w.Code)
	}

	getCtx := newCtx(http.MethodGet, "/devstoreaccount1/pics/a.txt", "", nil)
	w2 := httptest.NewRecorder()
	if err := h.GetBlob(w2, getCtx); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if w2.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w2.Code)
	}
	if w2.Body.String() != "hello world" {
		t.Fatalf("unexpected body: %q", w2.Body.String())
	}
}

func TestGetBlobNotFound(t *testing.T) {
	h := newHandlers()
	ctx := newCtx(http.MethodPut, "/devstoreaccount1/pics?restype=container", "", nil)
	if err := h.CreateContainer(httptest.NewRecorder(), ctx); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	getCtx := newCtx(http.MethodGet, "/devstoreaccount1/pics/nope.txt", "", nil)
	err := h.GetBlob(httptest.NewRecorder(), getCtx)
	if err == nil {
		t.Fatal("expected BlobNotFound")
	}
	if cmn.AsBlobError(err).Code != cmn.ErrBlobNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestPutBlockListRoundTrip(t *testing.T) {
	h := newHandlers()
	ctx := newCtx(http.MethodPut, "/devstoreaccount1/pics?restype=container", "", nil)
	if err := h.CreateContainer(httptest.NewRecorder(), ctx); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}

	blockID := "AAAAAAAAAAAAAAAAAAAAAA=="
	putBlockCtx := newCtx(http.MethodPut, "/devstoreaccount1/pics/b.txt?comp=block&blockid="+blockID, "block-data", nil)
	if err := h.PutBlock(httptest.NewRecorder(), putBlockCtx); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}

	commitBody := `<?xml version="1.0" encoding="utf-8"?><BlockList><Latest>` + blockID + `</Latest></BlockList>`
	commitCtx := newCtx(http.MethodPut, "/devstoreaccount1/pics/b.txt?comp=blocklist", commitBody, nil)
	w := httptest.NewRecorder()
	if err := h.PutBlockList(w, commitCtx); err != nil {
		t.Fatalf("PutBlockList: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", w.Code)
	}

	getCtx := newCtx(http.MethodGet, "/devstoreaccount1/pics/b.txt", "", nil)
	w2 := httptest.NewRecorder()
	if err := h.GetBlob(w2, getCtx); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if w2.Body.String() != "block-data" {
		t.Fatalf("unexpected committed body: %q", w2.Body.String())
	}
}
