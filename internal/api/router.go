package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/uma-arai/sbcntr-reservation/internal/heartbeat"
	"github.com/uma-arai/sbcntr-reservation/internal/repository"
)

const (
	ReservationsPath = "/reservations"
	SSEPath          = "/sse"

	mimeTextEventStream = "text/event-stream"
)

// Options はルーターの構成を指定します
type Options struct {
	// SSEEnabled が true の場合のみ /sse を公開します
	SSEEnabled bool
	// TracingName が空でない場合は X-Ray のセグメントを記録します
	TracingName string
}

// Handler は予約APIのHTTPハンドラーです
type Handler struct {
	reservationRepo repository.ReservationRepository
	heartbeat       *heartbeat.Service
}

// NewRouter はルートテーブルを登録したechoインスタンスを作成します
func NewRouter(reservationRepo repository.ReservationRepository, hb *heartbeat.Service, opts Options) *echo.Echo {
	h := &Handler{
		reservationRepo: reservationRepo,
		heartbeat:       hb,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("[%s] %s => %d: %v", v.Method, v.URI, v.Status, v.Error)
				return nil
			}
			log.Printf("[%s] %s => %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))

	var traced []echo.MiddlewareFunc
	if opts.TracingName != "" {
		namer := xray.NewFixedSegmentNamer(opts.TracingName)
		traced = append(traced, echo.WrapMiddleware(func(next http.Handler) http.Handler {
			return xray.Handler(namer, next)
		}))
	}

	e.GET(ReservationsPath, h.reservations, traced...)
	if opts.SSEEnabled && hb != nil {
		e.GET(SSEPath, h.sse)
	}

	return e
}

// reservations は GET /reservations で保存されている全ての予約を返します
func (h *Handler) reservations(c echo.Context) error {
	reservations, err := h.reservationRepo.FindAll(c.Request().Context())
	if err != nil {
		// echoのデフォルトのエラーハンドラーが500を返す
		return fmt.Errorf("failed to find reservations: %w", err)
	}

	return c.JSON(http.StatusOK, reservations)
}

// sse は GET /sse でクライアントが切断するまで挨拶文を配信します
func (h *Handler) sse(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, mimeTextEventStream)
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for greeting := range h.heartbeat.Subscribe(c.Request().Context()) {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", greeting); err != nil {
			// クライアントが切断済み
			return nil
		}
		w.Flush()
	}

	return nil
}
