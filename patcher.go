// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/saferwall/assetpatch/internal/log"
	"github.com/saferwall/assetpatch/internal/rwrecur"
)

// patchState is the scratch state of one file's patch: the planner maps,
// the name-table mutation plan and the evolving import destinations. It is
// owned entirely by one patch invocation; the only shared reference it
// holds is the read-only redirect database.
type patchState struct {
	f    *File
	db   *Database
	tok  rwrecur.Token
	ctx  *Context
	opts *Options

	names *namePlan

	originalPackageName string
	newPackageName      string
}

// patch is phase 2 and 3 for one parsed file: plan and apply every
// rewrite, finalize the name table, and serialize the patched header with
// the body copied through. The returned buffer is the complete output
// file.
func (f *File) patch(ctx *Context, db *Database, tok rwrecur.Token) ([]byte, error) {
	pkg, err := f.packageName()
	if err != nil {
		return nil, err
	}

	ps := &patchState{
		f:                   f,
		db:                  db,
		tok:                 tok,
		ctx:                 ctx,
		opts:                f.opts,
		names:               newNamePlan(f.Names),
		originalPackageName: pkg,
	}

	// Package name first: the redirected path feeds export full-name
	// computation and the registry special cases.
	redirected := db.GetRedirectedName(tok, TypePackage, Name{Package: pkg})
	ps.newPackageName = redirected.Package
	if ps.newPackageName != pkg {
		f.Summary.PackageName = ps.newPackageName
		ps.names.remap(pkg, ps.newPackageName)
	} else if f.Names.Contains(pkg) {
		ps.names.keep(pkg)
	}

	ps.patchExports()
	ps.patchImports()
	ps.patchSoftObjectPaths()
	ps.patchGatherableText()
	ps.patchSoftPackageRefs()
	ps.patchSearchableNames()
	ps.patchThumbnails()
	ps.patchAssetRegistry()
	ps.patchDependencyData()

	ps.names.finalize()
	return ps.serializeHeader()
}

// DoPatch is the one-shot entry point: patch a single file from src to
// dst under ctx, building a private redirect database for the call. The
// batch driver shares one database across workers instead; see
// Patcher.PatchAsync.
func DoPatch(src, dst string, ctx *Context) PatchResult {
	tok := rwrecur.NewToken()
	logger := log.NewStdLogger(os.Stdout)
	db := NewDatabase(logger)
	if ctx != nil {
		ctx.InstallInto(db, tok)
	}
	return doPatch(src, dst, ctx, db, tok, &Options{Logger: logger})
}

// doPatch runs the full three-phase pipeline for one file and classifies
// any failure into the closed per-file result set.
func doPatch(src, dst string, ctx *Context, db *Database, tok rwrecur.Token, opts *Options) PatchResult {
	f, err := New(src, opts)
	if err != nil {
		return ResultFailedToLoadSourceAsset
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return resultForError(err)
	}
	dumpDebugFile(f, opts, src, "before")

	buf, err := f.patch(ctx, db, tok)
	if err != nil {
		return resultForError(err)
	}
	dumpDebugFile(f, opts, src, "after")

	openErr, writeErr := writeDestinationFile(dst, buf)
	switch {
	case openErr != nil:
		return ResultFailedToOpenDestinationFile
	case writeErr != nil:
		return ResultFailedToWriteToDestinationFile
	}
	return ResultSuccess
}

// resultForError maps a structural error onto the closed per-file result
// set the batch driver reports.
func resultForError(err error) PatchResult {
	switch {
	case errors.Is(err, ErrUnsupportedFileVersion):
		return ResultUnknownSection
	case errors.Is(err, ErrCookedPackage), errors.Is(err, ErrUnexpectedSectionOrder):
		return ResultUnexpectedSectionOrder
	case errors.Is(err, ErrOutsideBoundary):
		return ResultBadOffset
	case errors.Is(err, ErrEmptyRequiredSection):
		return ResultEmptyRequiredSection
	case errors.Is(err, ErrNameNotInTable):
		return ResultFailedToWriteToDestinationFile
	default:
		return ResultFailedToDeserializeSourceAsset
	}
}

// dumpDebugFile writes the file's current deserialized form as indented
// JSON under Options.DebugDumpDir, labelled "before" or "after", for
// diff-based debugging. Off unless the directory is set.
func dumpDebugFile(f *File, opts *Options, srcPath, label string) {
	if opts == nil || opts.DebugDumpDir == "" {
		return
	}
	blob, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		f.logger.Warnf("debug dump of %s failed: %v", srcPath, err)
		return
	}
	name := filepath.Base(srcPath) + "." + label + ".json"
	path := filepath.Join(opts.DebugDumpDir, name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		f.logger.Warnf("debug dump of %s failed: %v", srcPath, err)
	}
}
