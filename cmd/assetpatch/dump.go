// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	assetpatch "github.com/saferwall/assetpatch"
	"github.com/spf13/cobra"
)

func prettyPrint(buff []byte) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, buff, "", "\t")
	if err != nil {
		log.Println("JSON parse error: ", err)
		return string(buff)
	}

	return prettyJSON.String()
}

func newDumpCommand() *cobra.Command {
	var (
		summary  bool
		names    bool
		imports  bool
		exports  bool
		registry bool
	)

	cmd := &cobra.Command{
		Use:   "dump <file>...",
		Short: "Dump the deserialized header of one or more package files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, filename := range args {
				if err := dumpFile(filename, summary, names, imports, exports, registry); err != nil {
					log.Printf("error while parsing file: %s, reason: %v", filename, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "dump the summary")
	cmd.Flags().BoolVar(&names, "names", false, "dump the name table")
	cmd.Flags().BoolVar(&imports, "imports", false, "dump the import table")
	cmd.Flags().BoolVar(&exports, "exports", false, "dump the export table")
	cmd.Flags().BoolVar(&registry, "registry", false, "dump the asset registry data")
	return cmd
}

func dumpFile(filename string, summary, names, imports, exports, registry bool) error {
	file, err := assetpatch.New(filename, &assetpatch.Options{})
	if err != nil {
		return err
	}
	defer file.Close()

	if err := file.Parse(); err != nil {
		return err
	}

	// With no section flags, dump the whole file.
	all := !summary && !names && !imports && !exports && !registry

	show := func(want bool, v interface{}) {
		if !want && !all {
			return
		}
		blob, err := json.Marshal(v)
		if err != nil {
			log.Printf("JSON marshal error: %v", err)
			return
		}
		fmt.Println(prettyPrint(blob))
	}

	if all {
		show(true, file)
		return nil
	}
	show(summary, file.Summary)
	show(names, file.Names)
	show(imports, file.Imports)
	show(exports, file.Exports)
	show(registry, file.AssetRegistry)
	return nil
}
