package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/creata-games/airdrop-engine/internal/handler"
)

func NewRouter(airdrops *handler.AirdropHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/airdrops", airdrops.HandleEnqueue)
		api.POST("/airdrops/execute", airdrops.HandleExecute)
		api.POST("/airdrops/ranking", airdrops.HandleRanking)
		api.GET("/airdrops", airdrops.HandleHistory)
		api.GET("/airdrops/stats", airdrops.HandleStats)
	}

	return router
}
