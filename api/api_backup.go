package api

import (
	"net/http"

	"github.com/demesne/go-demesne-server/services"
	"github.com/gin-gonic/gin"
)

type BackupApi struct {
	backupService *services.BackupService
}

func NewBackupApi(backupService *services.BackupService) *BackupApi {
	return &BackupApi{backupService: backupService}
}

// Back up the account repository
// @Summary Create repository backup
// @Description Streams the CAR export of the repository into object storage
// @Tags Backup
// @Param did path string true "DID"
// @Success 201 {object} types.Backup
// @Failure 412 {object} api.ApiError "session expired"
// @Router /api/v1/accounts/{did}/backups [post]
func (ba *BackupApi) CreateBackup(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	backup, err := ba.backupService.CreateBackup(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, backup)
}

// List repository backups
// @Summary List repository backups
// @Tags Backup
// @Param did path string true "DID"
// @Success 200 {array} types.Backup
// @Router /api/v1/accounts/{did}/backups [get]
func (ba *BackupApi) ListBackups(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	backups, err := ba.backupService.ListBackups(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, backups)
}

// Delete a repository backup
// @Summary Delete repository backup
// @Tags Backup
// @Param did path string true "DID"
// @Param key query string true "backup object key"
// @Success 204
// @Failure 400 {object} api.ApiError "key is not a backup of the account"
// @Failure 404 {object} api.ApiError "backup not found"
// @Failure 412 {object} api.ApiError "backup storage not configured"
// @Router /api/v1/accounts/{did}/backups [delete]
func (ba *BackupApi) DeleteBackup(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		ApiErrorf(c, http.StatusBadRequest, "key is required")
		return
	}
	if err := ba.backupService.DeleteBackup(c.Request.Context(), did, key); err != nil {
		ApiServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
