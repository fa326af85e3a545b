package fixtures

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type analysisJSON struct {
	Analysis
	Records string `json:"records"`
}

func toAnalysisJSON(list []Analysis) []analysisJSON {
	out := make([]analysisJSON, 0, len(list))
	for _, a := range list {
		out = append(out, analysisJSON{Analysis: a, Records: a.Records()})
	}
	return out
}

// DashboardHandler は GET /api/dashboard のハンドラーを返します。
func DashboardHandler(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"recentRuns": p.RecentRuns(),
			"home":       p.Home(),
			"user":       p.User(),
		})
	}
}

// HistoryHandler は GET /api/history のハンドラーを返します。
func HistoryHandler(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := HistoryQuery{
			Search: c.Query("search"),
			Status: c.DefaultQuery("status", FilterAll),
			Type:   c.DefaultQuery("type", FilterAll),
		}
		if err := q.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "status は all / completed / failed / processing のいずれかを指定してください。",
			})
			return
		}

		analyses := p.History(q)
		c.JSON(http.StatusOK, gin.H{
			"analyses": toAnalysisJSON(analyses),
			"total":    p.HistoryTotal(),
			"count":    len(analyses),
			"filtered": q.IsFiltered(),
			"types":    p.AnalysisTypes(),
		})
	}
}

// ResultsHandler は GET /api/results のハンドラーを返します。
func ResultsHandler(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"results": toAnalysisJSON(p.Results()),
		})
	}
}

// ResultHandler は GET /api/results/:id のハンドラーを返します。
func ResultHandler(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, ok := p.Result(c.Param("id"))
		if !ok {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"result":  detail,
			"records": FormatCount(detail.RecordCount) + " records",
		})
	}
}

// ExportHandler は GET /api/results/:id/export のハンドラーを返します。
func ExportHandler(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := ParseExportFormat(c.Query("format"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "UNSUPPORTED_FORMAT",
				"message": "format は csv または json を指定してください。",
			})
			return
		}

		detail, ok := p.Result(c.Param("id"))
		if !ok {
			respondNotFound(c)
			return
		}

		body, err := Export(detail, format)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "エクスポートに失敗しました。",
			})
			return
		}

		filename := fmt.Sprintf("analysis-%s.%s", detail.ID, format)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, format.ContentType(), body)
	}
}

func respondNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"code":    "RESULT_NOT_FOUND",
		"message": "指定された結果は存在しません。",
	})
}

// RegisterRoutes は固定データの API をルーターグループへ登録します。
func RegisterRoutes(group *gin.RouterGroup, p *Provider) {
	group.GET("/dashboard", DashboardHandler(p))
	group.GET("/history", HistoryHandler(p))
	group.GET("/results", ResultsHandler(p))
	group.GET("/results/:id", ResultHandler(p))
	group.GET("/results/:id/export", ExportHandler(p))
}
