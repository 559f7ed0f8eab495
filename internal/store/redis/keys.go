package redis

const (
	// KeyPrefixDoc is the prefix for document keys
	KeyPrefixDoc = "sigdesk:doc:"
	// KeyPrefixDocSet is the prefix for the per-collection set of document IDs
	KeyPrefixDocSet = "sigdesk:docs:"
	// KeyPrefixCache is the prefix for cache keys
	KeyPrefixCache = "sigdesk:cache:"
)

// DocKey returns the Redis key for a document
func DocKey(collection, id string) string {
	return KeyPrefixDoc + collection + ":" + id
}

// AllDocsKey returns the key for the set of all document IDs of a collection
func AllDocsKey(collection string) string {
	return KeyPrefixDocSet + collection + ":all"
}

// CacheKey returns the Redis key for a cached blob in a namespace
func CacheKey(namespace, key string) string {
	return KeyPrefixCache + namespace + ":" + key
}
