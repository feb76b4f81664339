// Package cache provides the response cache contracts, key derivation and
// configuration used by the inventory read endpoints.
//
// # Overview
//
// This package exports the following pieces:
//
//   - Store: a bounded, TTL aware key/value store holding serialized responses
//   - BatchCache: a read-through cache for values fetched in batches by id
//   - Target: the purge contract consumed by the invalidation gateway
//   - KeySerializer: builds stable keys from a resource name and arguments
//   - RequestKey: the default key function (method, path, canonical query)
//   - Collector: a prometheus collector over Store statistics
//
// # Basic Usage
//
//	store, err := cache.NewStore(ctx, cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	key := cache.NewDefaultKeySerializer().SerializeKey("cars", 1, 10, filters)
//	if body, ok := store.Get(key); ok {
//		// serve body
//	}
//	store.Set(key, body, 10*time.Minute)
//
// # Store Semantics
//
// An entry is live while now-insertedAt <= ttl. A lookup of an expired entry
// removes it and reports a miss (lazy expiry); a background sweep removes
// expired entries on a fixed interval (active expiry) so idle stores do not
// hold stale data.
//
// Capacity is a hard cap. Inserting a new key into a full store evicts the
// oldest inserted entry; reads never change eviction order.
//
// All operations are safe for concurrent use and none of them can fail.
// Caching is an optimization: a miss always falls through to live computation.
//
// # Key Structure
//
// Keys are plain strings so pattern invalidation can match on substrings.
// Every key for the car family contains the "cars:" token, for example:
//
//	cars:1:10:{}
//	cars:1:10:{"make":{"eq":"audi"}}
//	cars:detail:6f1c...
//	cars:relations:6f1c...
//
// RequestKey embeds query strings up to MaxQueryKeyLength bytes and replaces
// longer ones with an xxhash digest, keeping the method and path readable.
//
// # See Also
//
// For the middleware that reads and populates the store, see the httpcache package.
// For pattern invalidation, see the invalidation package.
package cache
