// Package cos provides common low-level types and utilities shared by the
// ground-station packages.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const (
	// alphabet for generating session/correlation IDs, similar to shortid.DEFAULT_ABC
	// NOTE: len(uuidABC) > 0x3f - see GenTie()
	uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"
)

const (
	LenShortID = 9 // session-ID length, as per https://github.com/teris-io/shortid#id-length

	// NOTE: cannot be smaller than LenShortID
	tooLongID = 32
)

const (
	mayOnlyContain = "may only contain letters, numbers, dashes (-), underscores (_)"
	OnlyNice       = "must be at most 32 characters and " + mayOnlyContain // NOTE tooLongID
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

// InitShortID seeds the session-ID generator; call once at daemon startup.
func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

//
// session / correlation IDs (FTL0 upload and download sessions)
//

// GenUUID returns a new globally-unique, URL-safe session identifier.
func GenUUID() (uuid string) {
	var h, t string
	uuid = sid.MustGenerate()
	if !isAlpha(uuid[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + uuid + t
}

func IsValidUUID(uuid string) bool {
	return len(uuid) >= LenShortID && IsAlphaNice(uuid)
}

// ShardDigest returns the xxhash digest of b; the store compares search
// tokens by it.
func ShardDigest(b []byte) uint64 { return xxhash.Checksum64(b) }

//
// utility functions
//

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// letters and numbers w/ '-' and '_' permitted with limitations (see OnlyNice const)
func IsAlphaNice(s string) bool {
	l := len(s)
	if l > tooLongID {
		return false
	}
	for i := 0; i < l; i++ {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

// CheckAlphaPlus validates a station callsign or similar tag: letters, numbers,
// dashes, underscores, and dots (never two dots in a row).
func CheckAlphaPlus(s, tag string) error {
	const tooLongTag = 64
	l := len(s)
	if l > tooLongTag {
		return fmt.Errorf("%s is too long: %d > %d (max length)", tag, l, tooLongTag)
	}
	for i := 0; i < l; i++ {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		if c != '.' {
			return errors.New(tag + " is invalid: " + mayOnlyContain + ", and dots (.)")
		}
		if i < l-1 && s[i+1] == '.' {
			return errors.New(tag + " is invalid: " + mayOnlyContain + ", and dots (.)")
		}
	}
	return nil
}

// GenTie returns a 3-character tie-breaker, used to disambiguate sessions
// that collide on their primary sort key within the same millisecond.
func GenTie() string {
	tie := rtie.Add(1)
	b0 := uuidABC[tie&0x3f]
	b1 := uuidABC[-tie&0x3f]
	b2 := uuidABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
