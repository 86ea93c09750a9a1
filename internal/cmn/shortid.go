// Package cmn provides ambient low-level types and utilities shared across
// the reconciliation core: configuration, error wrapping, and id generation.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"math/rand"
	"sync/atomic"

	"github.com/teris-io/shortid"
)

const (
	// Alphabet for generating ids similar to shortid.DEFAULT_ABC.
	// NOTE: len(uuidABC) > 0x3f - see GenTie()
	uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"
)

var (
	sid  *shortid.Shortid
	rtie int32
)

// InitShortID seeds the id generator. Call once at process start.
func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

// GenUUID generates a short, human-readable id used for notification
// correlation ids and synthesized instance ids.
func GenUUID() (uuid string) {
	var h, t string
	uuid = sid.MustGenerate()
	if !isAlpha(uuid[0]) {
		h = string(rune('A' + rand.Int()%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		t = string(rune('a' + rand.Int()%26))
	}
	return h + uuid + t
}

func IsValidUUID(uuid string) bool {
	const idlen = 9 // as per https://github.com/teris-io/shortid#id-length
	return len(uuid) >= idlen && isAlpha(uuid[0])
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// GenTie returns a short, process-unique tiebreaker string.
func GenTie() string {
	tie := atomic.AddInt32(&rtie, 1)
	b0 := uuidABC[tie&0x3f]
	b1 := uuidABC[-tie&0x3f]
	b2 := uuidABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
