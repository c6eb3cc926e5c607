// Copyright (C) 2024 The pmemstream Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command pmemstream-bench creates a stream file, appends a run
// of fixed-size entries to a single region, and reports throughput. It
// exists for manual exercise of the package, not as a supported tool.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ashgrove-labs/pmemstream"
)

var (
	dashPath      string
	dashBlockSize int64
	dashMapSize   int64
	dashEntrySize int
	dashCount     int
	dashVerbose   bool
)

func init() {
	flag.StringVar(&dashPath, "path", "", "stream file to create (required)")
	flag.Int64Var(&dashBlockSize, "block-size", 64<<10, "block_size in bytes")
	flag.Int64Var(&dashMapSize, "map-size", 64<<20, "total mapping size in bytes")
	flag.IntVar(&dashEntrySize, "entry-size", 256, "payload size per entry in bytes")
	flag.IntVar(&dashCount, "count", 10_000, "number of entries to append")
	flag.BoolVar(&dashVerbose, "v", false, "log recovery/allocation events")
}

func main() {
	flag.Parse()
	if dashPath == "" {
		fmt.Fprintln(os.Stderr, "pmemstream-bench: -path is required")
		os.Exit(1)
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pmemstream-bench: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	s, err := pmemstream.Create(dashPath, uint64(dashBlockSize), uint64(dashMapSize))
	if err != nil {
		return err
	}
	defer s.Close()
	if dashVerbose {
		s.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	region, err := s.RegionAllocate(uint64(dashMapSize) - uint64(dashBlockSize))
	if err != nil {
		return err
	}
	rt, err := s.RegionRuntimeInitialize(region)
	if err != nil {
		return err
	}

	payload := make([]byte, dashEntrySize)
	start := time.Now()
	for i := 0; i < dashCount; i++ {
		if _, err := s.Append(region, rt, payload); err != nil {
			return fmt.Errorf("append %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("appended %d entries of %d bytes in %s (%.0f entries/s)\n",
		dashCount, dashEntrySize, elapsed, float64(dashCount)/elapsed.Seconds())
	return nil
}
