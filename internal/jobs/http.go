package jobs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HandlerOptions はハンドラが利用する周辺機能です。
type HandlerOptions struct {
	// Owner はリクエストの所有者IDを返します。
	Owner func(c *gin.Context) string
	// StagedFiles は所有者がアップロード済みのファイル名を返します。
	StagedFiles func(owner string) []string
	// Result は完了したジョブの結果データを返します。
	Result func(resultID string) (any, bool)
}

func (o HandlerOptions) owner(c *gin.Context) string {
	if o.Owner == nil {
		return ""
	}
	return o.Owner(c)
}

// StartHandler は POST /api/analysis/:view/start のハンドラーを返します。
// 実行中や前提条件未達の場合も 200 を返し、started=false と outcome で理由を伝えます。
func StartHandler(m *Manager, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := viewParam(c)
		if !ok {
			return
		}

		var in RunInput
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "リクエストボディの形式が不正です。",
			})
			return
		}

		owner := opts.owner(c)
		if opts.StagedFiles != nil {
			in.Files = opts.StagedFiles(owner)
		}

		result, err := m.Start(c.Request.Context(), owner, view, in)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// StatusHandler は GET /api/analysis/:view のハンドラーを返します。
func StatusHandler(m *Manager, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := viewParam(c)
		if !ok {
			return
		}

		record, err := m.Snapshot(c.Request.Context(), opts.owner(c), view)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, statusPayload(record, opts))
	}
}

// CancelHandler は DELETE /api/analysis/:view のハンドラーを返します。画面の破棄時に呼ばれます。
func CancelHandler(m *Manager, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := viewParam(c)
		if !ok {
			return
		}

		record, err := m.Cancel(c.Request.Context(), opts.owner(c), view)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, statusPayload(record, opts))
	}
}

// EventsHandler は GET /api/analysis/:view/events?since=N のハンドラーを返します。
func EventsHandler(m *Manager, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := viewParam(c)
		if !ok {
			return
		}

		var since int64
		if raw := c.Query("since"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "INVALID_INPUT",
					"message": "since は 0 以上の整数で指定してください。",
				})
				return
			}
			since = v
		}

		events, truncated := m.Events().Poll(opts.owner(c), view, since)
		next := since
		if len(events) > 0 {
			next = events[len(events)-1].Seq
		}
		if events == nil {
			events = []Event{}
		}
		c.JSON(http.StatusOK, gin.H{
			"events":    events,
			"next":      next,
			"truncated": truncated,
		})
	}
}

func statusPayload(record *Record, opts HandlerOptions) gin.H {
	payload := gin.H{
		"job":        record,
		"isRunning":  record.IsRunning(),
		"isComplete": record.IsComplete(),
	}
	if record.IsComplete() && opts.Result != nil && record.ResultID != "" {
		if result, ok := opts.Result(record.ResultID); ok {
			payload["result"] = result
		}
	}
	return payload
}

func viewParam(c *gin.Context) (View, bool) {
	view, ok := ParseView(c.Param("view"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "VIEW_NOT_FOUND",
			"message": "指定された画面は存在しません。",
		})
		return "", false
	}
	return view, true
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "JOB_NOT_FOUND",
			"message": "この画面で実行中のジョブはありません。",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

// RegisterRoutes は分析ジョブの API をルーターグループへ登録します。
func RegisterRoutes(group *gin.RouterGroup, m *Manager, opts HandlerOptions, startMiddleware ...gin.HandlerFunc) {
	analysis := group.Group("/analysis/:view")
	start := append(append([]gin.HandlerFunc{}, startMiddleware...), StartHandler(m, opts))
	analysis.POST("/start", start...)
	analysis.GET("", StatusHandler(m, opts))
	analysis.DELETE("", CancelHandler(m, opts))
	analysis.GET("/events", EventsHandler(m, opts))
}
