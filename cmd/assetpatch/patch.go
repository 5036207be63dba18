// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	assetpatch "github.com/saferwall/assetpatch"
	ilog "github.com/saferwall/assetpatch/internal/log"
	"github.com/spf13/cobra"
)

func newPatchCommand() *cobra.Command {
	var (
		mapFile      string
		redirectsIni string
		dumpDir      string
		workers      int
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "patch --map renames.txt [flags]",
		Short: "Batch-patch asset headers according to a rename map",
		Long: `Reads a rename map of "src-file => dst-file" lines, builds a patching
context from it, and rewrites every file's header references in parallel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readRenameMap(mapFile)
			if err != nil {
				return err
			}

			level := ilog.LevelError
			if verbose {
				level = ilog.LevelDebug
			}
			logger := ilog.NewFilter(ilog.NewStdLogger(os.Stdout),
				ilog.FilterLevel(level))

			ctx := assetpatch.NewContextFromFileMap(logger, "", "", "", files, nil)

			patcher := assetpatch.NewPatcher(&assetpatch.Options{
				Logger:       logger,
				DebugDumpDir: dumpDir,
			})
			patcher.Workers = workers
			if err := patcher.SetContext(ctx); err != nil {
				return err
			}

			if redirectsIni != "" {
				r, err := os.Open(redirectsIni)
				if err != nil {
					return err
				}
				rules, err := assetpatch.ReadRedirectsFromIni(r)
				r.Close()
				if err != nil {
					return err
				}
				ctx.DerivedRedirects = append(ctx.DerivedRedirects, rules...)
			}

			var numFiles int
			var numPatched int64
			task, err := patcher.PatchAsync(&numFiles, &numPatched,
				func(src, dst string) { log.Printf("patched %s -> %s", src, dst) },
				func(src, dst string) { log.Printf("FAILED  %s", src) })
			if err != nil {
				return err
			}
			<-task

			result := patcher.GetPatchResult()
			log.Printf("%d/%d files processed, result: %s",
				atomic.LoadInt64(&numPatched), numFiles, result.String())
			for src, code := range patcher.GetErrorFiles() {
				log.Printf("  %s: %s", src, code.String())
			}
			if result != assetpatch.ResultSuccess {
				return fmt.Errorf("patching finished with status %s", result.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mapFile, "map", "", "file of 'src => dst' rename lines (required)")
	cmd.Flags().StringVar(&redirectsIni, "redirects", "", "ini file of extra redirect rules")
	cmd.Flags().StringVar(&dumpDir, "debug-dump-dir", "", "dump before/after JSON forms here")
	cmd.Flags().IntVar(&workers, "workers", 0, "max concurrent file patches (0 = CPU count)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

// readRenameMap parses "src => dst" lines, ignoring blanks and comments.
func readRenameMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	files := map[string]string{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=>", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s:%d: expected 'src => dst'", path, lineNo)
		}
		files[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
