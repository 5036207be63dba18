// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "errors"

// Structural errors returned while parsing or rewriting a single header.
var (
	// ErrOutsideBoundary is returned when a read or write would touch a byte
	// range outside of the header region currently being processed.
	ErrOutsideBoundary = errors.New("assetpatch: reading or writing data outside header boundary")

	// ErrInvalidFileSize is returned when the input is too small to contain
	// even a minimal Summary.
	ErrInvalidFileSize = errors.New("assetpatch: file smaller than a minimal package summary")

	// ErrUnsupportedFileVersion is returned when a package's serialized
	// version predates MinimumSupportedFileVersion.
	ErrUnsupportedFileVersion = errors.New("assetpatch: package file version predates the minimum supported version")

	// ErrCookedPackage is returned when the package carries cooked-only
	// artifacts (a non-zero cooked-data offset or unexpected VCell counts).
	ErrCookedPackage = errors.New("assetpatch: cooked packages are not supported")

	// ErrNameNotInTable is returned when writing a Name that does not
	// resolve to any entry in the final name table.
	ErrNameNotInTable = errors.New("assetpatch: name does not resolve in the final name table")

	// ErrAlreadyPatching is returned by APIs that may not be called
	// concurrently with an in-flight PatchAsync call.
	ErrAlreadyPatching = errors.New("assetpatch: operation not allowed while patching is in progress")

	// ErrEmptyAssetRedirectSource is returned by AddAssetRedirects when a
	// mapping's source package or object is empty.
	ErrEmptyAssetRedirectSource = errors.New("assetpatch: asset redirect source must have a non-empty package and object")

	// ErrUnexpectedSectionOrder is returned when summary offsets are not
	// monotonically increasing in the required section order.
	ErrUnexpectedSectionOrder = errors.New("assetpatch: summary offsets out of order")

	// ErrEmptyRequiredSection is returned when a mandatory section is empty
	// or the package name could not be recovered from the file path.
	ErrEmptyRequiredSection = errors.New("assetpatch: required header section is empty")
)

// PatchResult is the per-file (and, reused, overall-batch) status code
// produced by the patcher: a small closed set of named outcomes rather
// than a bare error, because the batch driver needs to classify failures
// without string-matching error text.
type PatchResult int

const (
	// ResultNotStarted is the zero value: no patching has been requested yet.
	ResultNotStarted PatchResult = iota

	// ResultCancelled is the batch's overall status after CancelPatching.
	// Files whose tasks had not begun are recorded in neither result map.
	ResultCancelled

	// ResultInProgress is the overall status while PatchAsync work is still
	// in flight.
	ResultInProgress

	// ResultSuccess means the file (or the whole batch) patched cleanly.
	ResultSuccess

	// ResultFailedToLoadSourceAsset means the input file could not be read.
	ResultFailedToLoadSourceAsset

	// ResultFailedToDeserializeSourceAsset means header parsing hit a
	// structural violation (bad version, malformed package path, ...).
	ResultFailedToDeserializeSourceAsset

	// ResultUnexpectedSectionOrder means summary offsets are not
	// monotonically increasing, or the file contains cooked-only artifacts.
	ResultUnexpectedSectionOrder

	// ResultBadOffset means a table offset points outside the header region.
	ResultBadOffset

	// ResultUnknownSection means the format declares a section the patcher
	// does not recognize (e.g. the file is too old to safely rewrite).
	ResultUnknownSection

	// ResultEmptyRequiredSection means a mandatory section is empty, or the
	// package name could not be recovered from the file path.
	ResultEmptyRequiredSection

	// ResultFailedToOpenDestinationFile means the output path could not be
	// created or opened for writing.
	ResultFailedToOpenDestinationFile

	// ResultFailedToWriteToDestinationFile means a write to the output file
	// failed, including the internal invariant check that every written
	// Name resolves in the final name table.
	ResultFailedToWriteToDestinationFile
)

// String implements fmt.Stringer.
func (r PatchResult) String() string {
	switch r {
	case ResultNotStarted:
		return "NotStarted"
	case ResultCancelled:
		return "Cancelled"
	case ResultInProgress:
		return "InProgress"
	case ResultSuccess:
		return "Success"
	case ResultFailedToLoadSourceAsset:
		return "FailedToLoadSourceAsset"
	case ResultFailedToDeserializeSourceAsset:
		return "FailedToDeserializeSourceAsset"
	case ResultUnexpectedSectionOrder:
		return "UnexpectedSectionOrder"
	case ResultBadOffset:
		return "BadOffset"
	case ResultUnknownSection:
		return "UnknownSection"
	case ResultEmptyRequiredSection:
		return "EmptyRequiredSection"
	case ResultFailedToOpenDestinationFile:
		return "FailedToOpenDestinationFile"
	case ResultFailedToWriteToDestinationFile:
		return "FailedToWriteToDestinationFile"
	default:
		return "Unknown"
	}
}

// IsError reports whether the result represents a terminal failure (as
// opposed to NotStarted/InProgress/Cancelled/Success).
func (r PatchResult) IsError() bool {
	switch r {
	case ResultFailedToLoadSourceAsset,
		ResultFailedToDeserializeSourceAsset,
		ResultUnexpectedSectionOrder,
		ResultBadOffset,
		ResultUnknownSection,
		ResultEmptyRequiredSection,
		ResultFailedToOpenDestinationFile,
		ResultFailedToWriteToDestinationFile:
		return true
	default:
		return false
	}
}
