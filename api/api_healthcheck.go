package api

import (
	"net/http"

	"github.com/demesne/go-demesne-server/global"
	"github.com/gin-gonic/gin"
)

type HealthCheckAPI struct {
}

func NewHealthCheckAPI() *HealthCheckAPI {
	return &HealthCheckAPI{}
}

func (ha *HealthCheckAPI) HealthCheck(c *gin.Context) {
	version := global.Conf.Version
	mode := global.Conf.Mode
	plc := global.Conf.Demesne.PlcDirectoryURL
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version, "mode": mode, "plcDirectory": plc})
}
