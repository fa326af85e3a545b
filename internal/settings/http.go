package settings

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetHandler は GET /api/settings のハンドラーを返します。
func GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"preferences": Load(sessions.Default(c)),
		})
	}
}

// UpdateHandler は PUT /api/settings のハンドラーを返します。
func UpdateHandler(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		var patch Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "設定を JSON で送ってください。",
			})
			return
		}

		session := sessions.Default(c)
		prefs := Load(session).Apply(patch)
		if err := prefs.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}
		if err := Save(session, prefs); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "SESSION_SAVE_FAILED",
				"message": "設定の保存に失敗しました。",
			})
			return
		}

		logger.Info("Settings saved",
			zap.String("theme", string(prefs.Theme)),
			zap.String("export_format", prefs.ExportFormat))
		c.JSON(http.StatusOK, gin.H{"preferences": prefs})
	}
}

// RegisterRoutes は設定 API をルーターグループへ登録します。
func RegisterRoutes(group *gin.RouterGroup, logger *zap.Logger) {
	group.GET("/settings", GetHandler())
	group.PUT("/settings", UpdateHandler(logger))
}
