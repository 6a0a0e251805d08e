package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/volumes"
	appErrors "github.com/openvolume/volcached/pkg/errors"
	"github.com/openvolume/volcached/pkg/response"
)

// VolumeHandler exposes the volume registry.
type VolumeHandler struct {
	svc   *volumes.Service
	cache *imagecache.Cache
}

// NewVolumeHandler constructs the volume handler.
func NewVolumeHandler(svc *volumes.Service, cache *imagecache.Cache) (*VolumeHandler, error) {
	if svc == nil {
		return nil, errors.New("volume handler: volume service is required")
	}
	if cache == nil {
		return nil, errors.New("volume handler: cache is required")
	}
	return &VolumeHandler{svc: svc, cache: cache}, nil
}

// CreateVolumeRequest is the JSON body for volume registration.
type CreateVolumeRequest struct {
	Name             string `json:"name"`
	Size             int64  `json:"size" binding:"required,gt=0"`
	Host             string `json:"host"`
	ClusterName      string `json:"cluster_name"`
	AvailabilityZone string `json:"availability_zone"`
}

// Create registers a volume.
//
// POST /api/volumes
func (h *VolumeHandler) Create(c *gin.Context) {
	var body CreateVolumeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.NewBadRequest(bindingErrorMessage(err)))
		return
	}

	volume, err := h.svc.Create(requestContext(c), volumes.CreateVolumeInput{
		Name:             body.Name,
		Size:             body.Size,
		Host:             body.Host,
		ClusterName:      body.ClusterName,
		AvailabilityZone: body.AvailabilityZone,
	})
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusCreated, volume)
}

// List retrieves volumes, optionally filtered by host, cluster or status.
//
// GET /api/volumes
func (h *VolumeHandler) List(c *gin.Context) {
	result, err := h.svc.List(requestContext(c), volumes.ListOptions{
		Host:    c.Query("host"),
		Cluster: c.Query("cluster"),
		Status:  c.Query("status"),
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list volumes"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result, &response.Meta{Total: len(result)})
}

// Get retrieves a volume by identifier.
//
// GET /api/volumes/:id
func (h *VolumeHandler) Get(c *gin.Context) {
	volume, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, volumes.ErrVolumeNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load volume"))
		return
	}

	response.Success(c, http.StatusOK, volume)
}

// Delete removes a volume. When the volume backs a cache entry the entry is
// evicted first so the eviction event is emitted before the record
// disappears.
//
// DELETE /api/volumes/:id
func (h *VolumeHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := requestContext(c)

	volume, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, volumes.ErrVolumeNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load volume"))
		return
	}

	scope := volumes.Scope(volume)
	if entry, err := h.cache.GetByVolume(ctx, scope, volume.ID); err == nil && entry != nil {
		if err := h.cache.Evict(ctx, scope, entry); err != nil {
			response.Error(c, appErrors.Wrap(err, "failed to evict cache entry"))
			return
		}
	}

	if err := h.svc.Delete(ctx, volume.ID); err != nil && !errors.Is(err, volumes.ErrVolumeNotFound) {
		response.Error(c, appErrors.Wrap(err, "failed to delete volume"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": volume.ID})
}
