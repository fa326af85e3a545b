package storage

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UploadHandler は POST /api/uploads のハンドラーを返します。
func UploadHandler(s *Staging, owner func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		files := form.File["files[]"]
		if len(files) == 0 {
			files = form.File["files"]
		}

		uploads := make([]Upload, 0, len(files))
		for _, fh := range files {
			head, err := readHead(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "INVALID_INPUT",
					"message": "ファイルの読み込みに失敗しました。",
				})
				return
			}
			uploads = append(uploads, Upload{Name: fh.Filename, Size: fh.Size, Head: head})
		}

		id := owner(c)
		staged, err := s.Stage(id, uploads)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"uploaded": staged,
			"files":    s.List(id),
		})
	}
}

// ListHandler は GET /api/uploads のハンドラーを返します。
func ListHandler(s *Staging, owner func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limits := s.Limits()
		c.JSON(http.StatusOK, gin.H{
			"files":         s.List(owner(c)),
			"maxBytes":      limits.MaxBytes,
			"maxSizeLabel":  FormatSize(limits.MaxBytes),
			"acceptPattern": limits.AcceptPattern,
		})
	}
}

// RemoveHandler は DELETE /api/uploads/:index のハンドラーを返します。
func RemoveHandler(s *Staging, owner func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "index は整数で指定してください。",
			})
			return
		}
		id := owner(c)
		if err := s.Remove(id, index); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"files": s.List(id)})
	}
}

// ClearHandler は DELETE /api/uploads のハンドラーを返します。
func ClearHandler(s *Staging, owner func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := owner(c)
		s.Clear(id)
		c.JSON(http.StatusOK, gin.H{"files": s.List(id)})
	}
}

// RegisterRoutes はアップロード API をルーターグループへ登録します。
func RegisterRoutes(group *gin.RouterGroup, s *Staging, owner func(*gin.Context) string) {
	group.POST("/uploads", UploadHandler(s, owner))
	group.GET("/uploads", ListHandler(s, owner))
	group.DELETE("/uploads", ClearHandler(s, owner))
	group.DELETE("/uploads/:index", RemoveHandler(s, owner))
}

func readHead(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head, err := io.ReadAll(io.LimitReader(f, SniffBytes))
	if err != nil {
		return nil, err
	}
	return head, nil
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		if apiErr.Code == "LIMIT_EXCEEDED" {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "FILE_NOT_FOUND",
			"message": "指定されたファイルは存在しません。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
