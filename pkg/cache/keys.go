// Package cache implements the exclusion-checked access layer over the
// backend key-value store: reads, TTL writes, cursor-based keyspace
// enumeration, chunked bulk deletion and aggregate statistics.
package cache

import "strings"

// Key namespaces. Every key the layer touches is prefixed by its purpose.
const (
	// NamespacePage holds full rendered documents.
	NamespacePage = "page"

	// NamespaceObject holds serialized content objects.
	NamespaceObject = "object"

	// NamespaceFragment holds cached sub-page fragments.
	NamespaceFragment = "frag"

	// NamespaceEphemeral holds redirected short-lived named values.
	NamespaceEphemeral = "eph"
)

// Namespaces lists all key namespaces in stats order.
var Namespaces = []string{NamespacePage, NamespaceObject, NamespaceFragment, NamespaceEphemeral}

// Key builds a namespaced key.
func Key(namespace, rest string) string {
	return namespace + ":" + rest
}

// NamespacePattern returns the scan pattern covering a whole namespace.
func NamespacePattern(namespace string) string {
	return namespace + ":*"
}

// InNamespace reports whether key belongs to the given namespace.
func InNamespace(key, namespace string) bool {
	return strings.HasPrefix(key, namespace+":")
}

// rawSuffix marks the untransformed twin of a dual-stored entry.
const rawSuffix = ":raw"

// RawKey returns the related key holding the untransformed original of a
// dual-stored entry.
func RawKey(key string) string {
	return key + rawSuffix
}
