// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the operational tunables that don't belong on
// the command line (spec SPEC_FULL.md §6 "Config file"): pool sizes,
// burst size, and the receive timeout. It reuses
// gopkg.in/ini.v1, the same library the teacher uses to load its PCC/
// SDF/ADC rule files (rules/pccrule.go, rules/sdfrule.go,
// rules/adcrule.go), section-by-section with HasKey guards before each
// read rather than a struct tag-driven unmarshal.
package config

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Section/key names in the ini file.
const (
	sectionGlobal          = "GLOBAL"
	keyRecvTimeoutMS       = "RECV_TIMEOUT_MS"
	keyMainPoolSize        = "MAIN_POOL_SIZE"
	keyFastForwardPoolSize = "FAST_FORWARD_POOL_SIZE"
	keyBurstSize           = "BURST_SIZE"
)

// Config holds the tunables an operator may supply in an ini file.
// Zero values mean "not set"; Load only fills in keys actually present,
// so a caller can apply its own command-line-flag defaults first and
// have the file override only what it names.
type Config struct {
	RecvTimeout         time.Duration
	MainPoolSize        int
	FastForwardPoolSize int
	BurstSize           int
}

// Load reads path as an ini file and returns the tunables it names.
// An empty path is not an error: it returns a zero Config, letting the
// caller fall back entirely to its own defaults.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return c, errors.Wrapf(err, "config: load %q", path)
	}

	sec := cfg.Section(sectionGlobal)
	if sec.HasKey(keyRecvTimeoutMS) {
		ms, err := sec.Key(keyRecvTimeoutMS).Int()
		if err != nil {
			return c, errors.Wrapf(err, "config: %s", keyRecvTimeoutMS)
		}
		c.RecvTimeout = time.Duration(ms) * time.Millisecond
	}
	if sec.HasKey(keyMainPoolSize) {
		c.MainPoolSize, err = sec.Key(keyMainPoolSize).Int()
		if err != nil {
			return c, errors.Wrapf(err, "config: %s", keyMainPoolSize)
		}
	}
	if sec.HasKey(keyFastForwardPoolSize) {
		c.FastForwardPoolSize, err = sec.Key(keyFastForwardPoolSize).Int()
		if err != nil {
			return c, errors.Wrapf(err, "config: %s", keyFastForwardPoolSize)
		}
	}
	if sec.HasKey(keyBurstSize) {
		c.BurstSize, err = sec.Key(keyBurstSize).Int()
		if err != nil {
			return c, errors.Wrapf(err, "config: %s", keyBurstSize)
		}
	}
	return c, nil
}
