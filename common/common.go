// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"runtime"
	"strconv"

	"github.com/pkg/errors"
)

// ErrMaxCPUExceed reports a requested core beyond the number of cores
// available on the machine. ParseCPUs does not check core numbers
// against the machine and never returns it.
var ErrMaxCPUExceed = errors.New("requested cpu exceeds maximum cores number on machine")

// ErrInvalidCPURange is returned by ParseCPUs for a range like "5-2"
// where the start exceeds the end.
var ErrInvalidCPURange = errors.New("cpu range is invalid, min should not exceed max")

// ParseCPUs parses a "-core" flag value such as "0,2-4,7" into the
// list of CPU numbers it names, in the order they first appear, for
// pinning the poll loop's goroutine with runtime.LockOSThread (spec
// §6 CLI: "core (CPU-core list)"). An empty string yields an empty,
// non-nil slice.
func ParseCPUs(s string) ([]uint, error) {
	nums := make([]uint, 0, 8)
	if s == "" {
		return nums, nil
	}

	startRange := -1
	j := 0
	for i := 0; i <= len(s); i++ {
		if i != len(s) && s[i] == '-' {
			v, err := strconv.Atoi(s[j:i])
			if err != nil {
				return nil, err
			}
			startRange = v
			j = i + 1
			continue
		}
		if i == len(s) || s[i] == ',' {
			r, err := strconv.Atoi(s[j:i])
			if err != nil {
				return nil, err
			}
			if startRange != -1 {
				if startRange > r {
					return nil, ErrInvalidCPURange
				}
				for k := startRange; k <= r; k++ {
					nums = append(nums, uint(k))
				}
				startRange = -1
			} else {
				nums = append(nums, uint(r))
			}
			j = i + 1
		}
	}
	return removeDuplicates(nums), nil
}

// MaxAvailableCPUs returns the number of logical cores Go's scheduler
// can see, i.e. runtime.NumCPU(). Neither ParseCPUs nor its caller in
// cmd/meica-vnf checks parsed core numbers against it.
func MaxAvailableCPUs() uint {
	return uint(runtime.NumCPU())
}

func removeDuplicates(in []uint) []uint {
	out := make([]uint, 0, len(in))
	seen := make(map[uint]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
