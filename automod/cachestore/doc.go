// TTL cache of serialized values, used to remember external classifier responses by content hash.
//
// Entries are opaque strings (usually JSON, see GetJSON/SetJSON). There is a redis implementation for multi-instance deployments and an in-process LRU for everything else.
package cachestore
