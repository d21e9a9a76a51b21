package main

import (
	"github.com/blobemu/blobemu/dispatch"
	"github.com/blobemu/blobemu/handlers"
)

// buildDispatchTable binds every operation family to its handlers.Handlers
// method, the one place server's routing is wired to storage (spec §9
// "dispatch has no dependency on the storage engine or auth" — that
// dependency lives here instead).
func buildDispatchTable(h *handlers.Handlers) *dispatch.Table {
	return &dispatch.Table{
		ListContainers:       h.ListContainers,
		GetServiceProperties: h.GetServiceProperties,
		SetServiceProperties: h.SetServiceProperties,
		GetServiceStats:      h.GetServiceStats,
		UserDelegationKey:    h.UserDelegationKey,
		Batch:                h.Batch,

		CreateContainer:        h.CreateContainer,
		DeleteContainer:        h.DeleteContainer,
		GetContainerProperties: h.GetContainerProperties,
		SetContainerMetadata:   h.SetContainerMetadata,
		GetContainerACL:        h.GetContainerACL,
		SetContainerACL:        h.SetContainerACL,
		ContainerLease:         h.ContainerLease,
		ListBlobs:              h.ListBlobs,

		GetBlob:           h.GetBlob,
		DeleteBlob:        h.DeleteBlob,
		UndeleteBlob:      h.UndeleteBlob,
		CopyBlob:          h.CopyBlob,
		AbortCopyBlob:     h.AbortCopyBlob,
		PutBlockBlob:      h.PutBlockBlob,
		PutPageBlob:       h.PutPageBlob,
		PutAppendBlob:     h.PutAppendBlob,
		PutBlock:          h.PutBlock,
		PutBlockList:      h.PutBlockList,
		GetBlockList:      h.GetBlockList,
		PutPage:           h.PutPage,
		GetPageRanges:     h.GetPageRanges,
		AppendBlock:       h.AppendBlock,
		SealAppendBlob:    h.SealAppendBlob,
		SetBlobProperties: h.SetBlobProperties,
		SetBlobMetadata:   h.SetBlobMetadata,
		BlobLease:         h.BlobLease,
		SnapshotBlob:      h.SnapshotBlob,
		SetBlobTier:       h.SetBlobTier,
		GetBlobTags:       h.GetBlobTags,
		SetBlobTags:       h.SetBlobTags,
	}
}
