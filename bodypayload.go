// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Body returns the raw post-header payload of the source file. The
// patcher never interprets these bytes; they are copied into the output
// verbatim.
func (f *File) Body() []byte {
	if f.data == nil || f.Summary.TotalHeaderSize > int64(len(f.data)) {
		return nil
	}
	return f.data[f.Summary.TotalHeaderSize:]
}

// writeDestinationFile creates dst (and any missing parent directories)
// and writes buf to it with "even if read-only" semantics: an existing
// read-only target is made writable and overwritten. openErr
// distinguishes failures to open the target from failures to write it.
func writeDestinationFile(dst string, buf []byte) (openErr, writeErr error) {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err, nil
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if errors.Is(err, fs.ErrPermission) {
		if chmodErr := os.Chmod(dst, 0o644); chmodErr == nil {
			out, err = os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		}
	}
	if err != nil {
		return err, nil
	}

	if _, err := out.Write(buf); err != nil {
		out.Close()
		return nil, err
	}
	return nil, out.Close()
}
