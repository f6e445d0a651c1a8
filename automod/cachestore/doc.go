// Decision cache for the moderation pipeline: maps message fingerprints to
// classification results with a fixed TTL and a capacity bound.
//
// Includes an interface and implementations using redis and in-process memory.
package cachestore
