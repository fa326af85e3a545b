// Package navigation は画面上部のナビゲーション項目を提供します。
package navigation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Item はナビゲーションの1項目です。
type Item struct {
	Name   string `json:"name"`
	Href   string `json:"href"`
	Icon   string `json:"icon"`
	Active bool   `json:"active"`
}

var items = []Item{
	{Name: "Home", Href: "/", Icon: "home"},
	{Name: "New Analysis", Href: "/input", Icon: "upload"},
	{Name: "Results", Href: "/results", Icon: "bar-chart"},
	{Name: "History", Href: "/history", Icon: "history"},
	{Name: "Settings", Href: "/settings", Icon: "settings"},
}

// Items は path に対して Active を設定した項目一覧を返します。
// Results は /results 配下の詳細画面でも有効になります。
func Items(path string) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		item.Active = path == item.Href || (item.Href == "/results" && strings.HasPrefix(path, "/results"))
		out[i] = item
	}
	return out
}

// Handler は GET /api/navigation?path= のハンドラーを返します。
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"brand": "DataViz Pro",
			"items": Items(c.DefaultQuery("path", "/")),
		})
	}
}
