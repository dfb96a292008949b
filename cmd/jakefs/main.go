// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// A tool for mounting jakefs, following the shape of
// samples/mount_memfs and samples/mount_hello in the driver dependency.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"

	"github.com/jakefs/jakefs/internal/jakefs"
)

const fsName = "jakefs"

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		log.Printf("Usage: %s <MOUNTPOINT>", os.Args[0])
		os.Exit(0)
	}
	mountPoint := flag.Arg(0)

	logger := newLogger()

	fs := jakefs.NewFileSystem(timeutil.RealClock(), mountPoint, 0)

	cfg := &fuse.MountConfig{
		FSName:     fsName,
		VolumeName: fsName,
		Options: map[string]string{
			"allow_other": "",
		},
		ErrorLogger: logger,
	}
	if os.Getenv("JAKEFS_LOG") == "debug" {
		cfg.DebugLogger = logger
	}
	// AutoUnmount isn't a libfuse mount option in its own right on Linux; it's
	// requested of the kernel via the auto_unmount -o flag, same as
	// allow_other.
	cfg.Options["auto_unmount"] = ""

	mfs, err := fuse.Mount(mountPoint, fuseutil.NewFileSystemServer(fs), cfg)
	if err != nil {
		if os.IsPermission(err) {
			log.Printf("Permission Denied: add 'user_allow_other' in fuse.conf")
			os.Exit(1)
		}
		log.Fatalf("Mount: %v", err)
	}

	if err = mfs.Join(context.Background()); err != nil {
		log.Fatalf("Join: %v", err)
	}
}

// newLogger builds the stderr logger whose verbosity is controlled by
// JAKEFS_LOG (debug/info/off), the RUST_LOG-equivalent spec.md §6 calls for.
func newLogger() *log.Logger {
	if os.Getenv("JAKEFS_LOG") == "off" {
		return log.New(io.Discard, "jakefs: ", 0)
	}
	return log.New(os.Stderr, "jakefs: ", log.LstdFlags)
}
