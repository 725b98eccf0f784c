package api

import (
	"alcyxob/coursevault/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	backupService service.BackupService,
	restoreService service.RestoreService,
	sweeperService service.SweeperService,
) {
	assetHandler := NewAssetHandler(backupService, restoreService, sweeperService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		assetGroup := apiV1.Group("/assets")
		{
			// POST /api/v1/assets - register + back up an asset
			assetGroup.POST("", assetHandler.UploadAsset)
			// GET /api/v1/assets/cid/{cid} - local record lookup
			assetGroup.GET("/cid/:cid", assetHandler.GetByCid)
			// GET /api/v1/assets/cid/{cid}/download - rehydrate content
			assetGroup.GET("/cid/:cid/download", assetHandler.DownloadByCid)
		}

		backupGroup := apiV1.Group("/backup")
		{
			// POST /api/v1/backup/sweep - manual retry sweep
			backupGroup.POST("/sweep", assetHandler.TriggerSweep)
		}
	}
}

// abortWithError sends a JSON error response and stops the handler chain.
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
