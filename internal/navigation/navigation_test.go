package navigation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func activeNames(path string) []string {
	var names []string
	for _, item := range Items(path) {
		if item.Active {
			names = append(names, item.Name)
		}
	}
	return names
}

func TestItemsActive(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Home"}},
		{"/input", []string{"New Analysis"}},
		{"/results", []string{"Results"}},
		{"/results/new", []string{"Results"}},
		{"/results/3", []string{"Results"}},
		{"/history", []string{"History"}},
		{"/history/1", nil},
		{"/unknown", nil},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, activeNames(tc.path), "path=%s", tc.path)
	}
	assert.Len(t, Items("/"), 5)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/navigation", Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/navigation?path=/results/new", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `{"name":"Results","href":"/results","icon":"bar-chart","active":true}`)
}
