package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Scope selects the partition of the cache an entry belongs to. Exactly one
// of Host or Cluster is the active key: clustered deployments key entries by
// cluster name so any host in the cluster can reuse them, host-based
// deployments key by host.
type Scope struct {
	Host    string
	Cluster string
}

// HostScope builds a host-keyed scope.
func HostScope(host string) Scope {
	return Scope{Host: strings.TrimSpace(host)}
}

// ClusterScope builds a cluster-keyed scope.
func ClusterScope(cluster string) Scope {
	return Scope{Cluster: strings.TrimSpace(cluster)}
}

// IsZero reports whether no scope key is set.
func (s Scope) IsZero() bool {
	return s.Host == "" && s.Cluster == ""
}

// Key returns the active scope key. Cluster wins when both are set.
func (s Scope) Key() string {
	if s.Cluster != "" {
		return s.Cluster
	}
	return s.Host
}

// String renders the scope for logs and event payloads.
func (s Scope) String() string {
	if s.Cluster != "" {
		return fmt.Sprintf("cluster:%s", s.Cluster)
	}
	return fmt.Sprintf("host:%s", s.Host)
}

// apply narrows a query to this scope.
func (s Scope) apply(db *gorm.DB) *gorm.DB {
	if s.Cluster != "" {
		return db.Where("cluster_name = ?", s.Cluster)
	}
	return db.Where("host = ? AND cluster_name = ''", s.Host)
}
