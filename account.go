// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

// Account tracks the net byte delta of a Cache over a bounded scope,
// grounded on the original's open/close account helpers and exercised by
// spec §8's round-trip law: "the bytes-used counter has difference zero at
// the end of any closed account scope."
type Account struct {
	c         *Cache
	startedAt int64
}

// OpenAccount begins tracking c's live-byte delta from this point.
//
// Meaningful only on a Cache obtained from NewCache and held for the
// account's whole scope. The package-level Malloc/Free convenience
// functions Pin a Cache from the default pool per call and Unpin it
// immediately after, so two calls in the same "scope" may touch different
// pooled Caches; an Account opened against one of those sees only the
// subset of traffic that happened to land back on it.
func (c *Cache) OpenAccount() *Account {
	return &Account{c: c, startedAt: c.bytesLive}
}

// Close ends the account and returns the net change in live bytes since
// OpenAccount: zero for a leak-free scope.
func (a *Account) Close() int64 {
	return a.c.bytesLive - a.startedAt
}
