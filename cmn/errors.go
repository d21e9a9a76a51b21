// Package cmn provides common constants, types, and utilities shared by the
// request pipeline, storage engine, and handlers.
/*
 * Copyright (c) 2024, blobemu authors.
 */
package cmn

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorCode is a stable, closed error-code string drawn from the Azure Blob
// Storage REST error taxonomy (see DESIGN.md — grounded on the Azure SDK's
// bloberror.Code constants). Each code carries a default HTTP status and a
// default message; handlers may override the message but never the code or
// status for a given code.
type ErrorCode string

// BlobError is the value every handler returns on failure; the dispatcher
// serializes it to the wire Error XML body (spec §6) without recovering or
// swallowing it.
type BlobError struct {
	Code    ErrorCode
	Status  int
	Message string
	cause   error
}

func (e *BlobError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BlobError) Unwrap() error { return e.cause }

// NewErr constructs a BlobError for a known code with its registered status
// and default message.
func NewErr(code ErrorCode) *BlobError {
	d, ok := errRegistry[code]
	if !ok {
		return &BlobError{Code: ErrInternalError, Status: http.StatusInternalServerError, Message: "unregistered error code: " + string(code)}
	}
	return &BlobError{Code: code, Status: d.status, Message: d.message}
}

// NewErrMsg is like NewErr but overrides the message (e.g. to include the
// offending value), keeping the registered code/status.
func NewErrMsg(code ErrorCode, format string, a ...interface{}) *BlobError {
	e := NewErr(code)
	e.Message = fmt.Sprintf(format, a...)
	return e
}

// Wrap attaches an internal cause without changing the wire-visible code,
// status, or message — for logging only.
func (e *BlobError) Wrap(cause error) *BlobError {
	e.cause = errors.WithStack(cause)
	return e
}

// AsBlobError extracts a *BlobError from err, mapping anything else to
// InternalError — handlers never let an unmapped error reach the wire.
func AsBlobError(err error) *BlobError {
	if err == nil {
		return nil
	}
	var be *BlobError
	if errors.As(err, &be) {
		return be
	}
	return NewErr(ErrInternalError).Wrap(err)
}

// Closed error-code set (spec §7). Status assignment follows spec §7's
// blanket rules with explicit per-code overrides where the spec calls one
// out (InvalidRange -> 416, OperationTimedOut/InternalError -> 500,
// ServerBusy -> 503).
const (
	ErrAccountIsDisabled                     ErrorCode = "AccountIsDisabled"
	ErrAppendPositionConditionNotMet         ErrorCode = "AppendPositionConditionNotMet"
	ErrAuthenticationFailed                  ErrorCode = "AuthenticationFailed"
	ErrAuthorizationFailure                  ErrorCode = "AuthorizationFailure"
	ErrAuthorizationPermissionMismatch       ErrorCode = "AuthorizationPermissionMismatch"
	ErrAuthorizationResourceTypeMismatch     ErrorCode = "AuthorizationResourceTypeMismatch"
	ErrAuthorizationServiceMismatch          ErrorCode = "AuthorizationServiceMismatch"
	ErrBlockCountExceedsLimit                ErrorCode = "BlockCountExceedsLimit"
	ErrBlockListTooLong                      ErrorCode = "BlockListTooLong"
	ErrConditionNotMet                       ErrorCode = "ConditionNotMet"
	ErrContainerAlreadyExists                ErrorCode = "ContainerAlreadyExists"
	ErrContainerNotFound                     ErrorCode = "ContainerNotFound"
	ErrInternalError                         ErrorCode = "InternalError"
	ErrInvalidAuthenticationInfo             ErrorCode = "InvalidAuthenticationInfo"
	ErrInvalidBlobOrBlock                    ErrorCode = "InvalidBlobOrBlock"
	ErrInvalidBlobType                       ErrorCode = "InvalidBlobType"
	ErrInvalidBlockID                        ErrorCode = "InvalidBlockId"
	ErrInvalidBlockList                      ErrorCode = "InvalidBlockList"
	ErrInvalidHeaderValue                    ErrorCode = "InvalidHeaderValue"
	ErrInvalidInput                          ErrorCode = "InvalidInput"
	ErrInvalidOperation                      ErrorCode = "InvalidOperation"
	ErrInvalidPageRange                      ErrorCode = "InvalidPageRange"
	ErrInvalidQueryParameterValue            ErrorCode = "InvalidQueryParameterValue"
	ErrInvalidRange                          ErrorCode = "InvalidRange"
	ErrInvalidResourceName                   ErrorCode = "InvalidResourceName"
	ErrInvalidURI                            ErrorCode = "InvalidUri"
	ErrInvalidXMLDocument                    ErrorCode = "InvalidXmlDocument"
	ErrLeaseAlreadyPresent                   ErrorCode = "LeaseAlreadyPresent"
	ErrLeaseIDMismatchWithBlobOperation       ErrorCode = "LeaseIdMismatchWithBlobOperation"
	ErrLeaseIDMismatchWithContainerOperation  ErrorCode = "LeaseIdMismatchWithContainerOperation"
	ErrLeaseIDMismatchWithLeaseOperation      ErrorCode = "LeaseIdMismatchWithLeaseOperation"
	ErrLeaseIDMissing                        ErrorCode = "LeaseIdMissing"
	ErrLeaseNotPresentWithBlobOperation       ErrorCode = "LeaseNotPresentWithBlobOperation"
	ErrLeaseNotPresentWithContainerOperation  ErrorCode = "LeaseNotPresentWithContainerOperation"
	ErrLeaseNotPresentWithLeaseOperation      ErrorCode = "LeaseNotPresentWithLeaseOperation"
	ErrMaxBlobSizeConditionNotMet             ErrorCode = "MaxBlobSizeConditionNotMet"
	ErrMD5Mismatch                            ErrorCode = "Md5Mismatch"
	ErrMissingRequiredHeader                  ErrorCode = "MissingRequiredHeader"
	ErrMissingRequiredQueryParameter          ErrorCode = "MissingRequiredQueryParameter"
	ErrMultipleConditionHeadersNotSupported   ErrorCode = "MultipleConditionHeadersNotSupported"
	ErrNoPendingCopyOperation                 ErrorCode = "NoPendingCopyOperation"
	ErrOperationTimedOut                      ErrorCode = "OperationTimedOut"
	ErrRequestBodyTooLarge                    ErrorCode = "RequestBodyTooLarge"
	ErrResourceNotFound                       ErrorCode = "ResourceNotFound"
	ErrSequenceNumberConditionNotMet          ErrorCode = "SequenceNumberConditionNotMet"
	ErrServerBusy                             ErrorCode = "ServerBusy"
	ErrSnapshotsPresent                       ErrorCode = "SnapshotsPresent"
	ErrUnsupportedHTTPVerb                    ErrorCode = "UnsupportedHttpVerb"

	// blob-not-found is modeled separately from container-not-found so
	// precedence (spec §4.2 "ContainerNotFound takes precedence") is simple
	// to express at the call site.
	ErrBlobNotFound ErrorCode = "BlobNotFound"
)

type errDef struct {
	status  int
	message string
}

var errRegistry = map[ErrorCode]errDef{
	ErrAccountIsDisabled:                    {http.StatusForbidden, "The specified account is disabled."},
	ErrAppendPositionConditionNotMet:        {http.StatusPreconditionFailed, "The append position condition specified was not met."},
	ErrAuthenticationFailed:                 {http.StatusUnauthorized, "Server failed to authenticate the request."},
	ErrAuthorizationFailure:                 {http.StatusForbidden, "This request is not authorized to perform this operation."},
	ErrAuthorizationPermissionMismatch:      {http.StatusForbidden, "This request is not authorized to perform this operation using this permission."},
	ErrAuthorizationResourceTypeMismatch:    {http.StatusForbidden, "This request is not authorized to perform this operation using this resource type."},
	ErrAuthorizationServiceMismatch:         {http.StatusForbidden, "This request is not authorized to perform this operation using this service."},
	ErrBlockCountExceedsLimit:               {http.StatusConflict, "The committed block count cannot exceed the maximum limit of 50,000 blocks."},
	ErrBlockListTooLong:                     {http.StatusRequestEntityTooLarge, "The block list may not contain more than 50,000 blocks."},
	ErrConditionNotMet:                      {http.StatusPreconditionFailed, "The condition specified using HTTP conditional header(s) is not met."},
	ErrContainerAlreadyExists:               {http.StatusConflict, "The specified container already exists."},
	ErrContainerNotFound:                    {http.StatusNotFound, "The specified container does not exist."},
	ErrInternalError:                        {http.StatusInternalServerError, "The server encountered an internal error. Please retry the request."},
	ErrInvalidAuthenticationInfo:            {http.StatusUnauthorized, "The authentication information was not provided in the correct format."},
	ErrInvalidBlobOrBlock:                   {http.StatusBadRequest, "The specified blob or block content is invalid."},
	ErrInvalidBlobType:                      {http.StatusConflict, "The blob type is invalid for this operation."},
	ErrInvalidBlockID:                       {http.StatusBadRequest, "The specified block ID is invalid."},
	ErrInvalidBlockList:                     {http.StatusBadRequest, "The specified block list is invalid."},
	ErrInvalidHeaderValue:                   {http.StatusBadRequest, "The value provided for one of the HTTP headers was not in the correct format."},
	ErrInvalidInput:                         {http.StatusBadRequest, "One of the request inputs is not valid."},
	ErrInvalidOperation:                     {http.StatusConflict, "Invalid operation against a sealed blob."},
	ErrInvalidPageRange:                     {http.StatusRequestedRangeNotSatisfiable, "The page range specified is invalid."},
	ErrInvalidQueryParameterValue:           {http.StatusBadRequest, "Value for one of the query parameters specified in the request URI is invalid."},
	ErrInvalidRange:                         {http.StatusRequestedRangeNotSatisfiable, "The range specified is invalid for the current size of the resource."},
	ErrInvalidResourceName:                  {http.StatusBadRequest, "The specified resource name contains invalid characters."},
	ErrInvalidURI:                           {http.StatusBadRequest, "The requested URI does not represent any resource on the server."},
	ErrInvalidXMLDocument:                   {http.StatusBadRequest, "XML specified is not syntactically valid."},
	ErrLeaseAlreadyPresent:                  {http.StatusConflict, "There is already a lease present."},
	ErrLeaseIDMismatchWithBlobOperation:       {http.StatusConflict, "The lease ID specified did not match the lease ID for the blob."},
	ErrLeaseIDMismatchWithContainerOperation:  {http.StatusConflict, "The lease ID specified did not match the lease ID for the container."},
	ErrLeaseIDMismatchWithLeaseOperation:      {http.StatusConflict, "The lease ID specified did not match the lease ID for the blob/container."},
	ErrLeaseIDMissing:                       {http.StatusPreconditionFailed, "There is currently a lease on the resource and no lease ID was specified in the request."},
	ErrLeaseNotPresentWithBlobOperation:       {http.StatusConflict, "There is currently no lease on the blob."},
	ErrLeaseNotPresentWithContainerOperation:  {http.StatusConflict, "There is currently no lease on the container."},
	ErrLeaseNotPresentWithLeaseOperation:      {http.StatusConflict, "There is currently no lease on the resource."},
	ErrMaxBlobSizeConditionNotMet:            {http.StatusPreconditionFailed, "The max blob size condition specified was not met."},
	ErrMD5Mismatch:                          {http.StatusBadRequest, "The MD5 value specified in the request did not match the MD5 value calculated by the server."},
	ErrMissingRequiredHeader:                {http.StatusBadRequest, "An HTTP header that's mandatory for this request is not specified."},
	ErrMissingRequiredQueryParameter:        {http.StatusBadRequest, "A required query parameter is missing for this request."},
	ErrMultipleConditionHeadersNotSupported: {http.StatusBadRequest, "Multiple condition headers are not supported."},
	ErrNoPendingCopyOperation:               {http.StatusConflict, "There is currently no pending copy operation."},
	ErrOperationTimedOut:                    {http.StatusInternalServerError, "The operation could not be completed within the permitted time."},
	ErrRequestBodyTooLarge:                  {http.StatusRequestEntityTooLarge, "The request body is too large."},
	ErrResourceNotFound:                     {http.StatusNotFound, "The specified resource does not exist."},
	ErrSequenceNumberConditionNotMet:        {http.StatusPreconditionFailed, "The sequence number condition specified was not met."},
	ErrServerBusy:                           {http.StatusServiceUnavailable, "The server is currently unable to receive requests. Please retry your request."},
	ErrSnapshotsPresent:                     {http.StatusConflict, "This operation is not permitted while the blob has snapshots."},
	ErrUnsupportedHTTPVerb:                  {http.StatusBadRequest, "The resource doesn't support the specified HTTP verb."},
	ErrBlobNotFound:                         {http.StatusNotFound, "The specified blob does not exist."},
}
