package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/pkg/errors"
)

// scopeFromQuery resolves the cache scope from the host/cluster query
// parameters. Exactly one must be supplied.
func scopeFromQuery(c *gin.Context) (store.Scope, error) {
	host := strings.TrimSpace(c.Query("host"))
	cluster := strings.TrimSpace(c.Query("cluster"))

	switch {
	case host == "" && cluster == "":
		return store.Scope{}, errors.NewBadRequest("either host or cluster query parameter is required")
	case host != "" && cluster != "":
		return store.Scope{}, errors.NewBadRequest("host and cluster query parameters are mutually exclusive")
	case cluster != "":
		return store.ClusterScope(cluster), nil
	default:
		return store.HostScope(host), nil
	}
}
