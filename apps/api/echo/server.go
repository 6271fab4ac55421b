// Package echoapi is the HTTP surface: REST endpoints plus the SSE change
// feed, served by echo.
package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/realtime"
)

type (
	Deps struct {
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       user.ServiceInterface
		TaskSvc       task.ServiceInterface
		CommentSvc    comment.ServiceInterface
		AttachmentSvc attachment.ServiceInterface
		ShopSvc       shop.ServiceInterface
		CoinSvc       coin.ServiceInterface
		BoardSvc      board.ServiceInterface
		Feed          realtime.Feed
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		addr string
		conf *core.Config
		deps *Deps
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server. signalShutdown is called when an
// unrecoverable error is caught so main can stop gracefully.
func NewServer(addr string, signalShutdown func(), conf *core.Config, deps *Deps) Server {
	s := &server{
		addr: addr,
		conf: conf,
		deps: deps,
		app:  echo.New(),
	}
	s.setup(signalShutdown)
	return s
}

func (s *server) setup(signalShutdown func()) {
	if signalShutdown == nil {
		signalShutdown = func() {}
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, signalShutdown)
	s.app.Debug = s.conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)
	s.app.GET("/metrics", metricsHandler())

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.conf, s.deps.Validate)
	registerTaskAPI(v1, jwt, s.deps.TaskSvc, s.deps.UserSvc, s.deps.Validate)
	registerCommentAPI(v1, jwt, s.deps.CommentSvc, s.deps.TaskSvc, s.deps.UserSvc, s.deps.Validate)
	registerAttachmentAPI(v1, jwt, s.deps.AttachmentSvc, s.deps.TaskSvc, s.deps.UserSvc)
	registerShopAPI(v1, jwt, s.deps.ShopSvc, s.deps.CoinSvc, s.deps.Validate)
	registerBoardAPI(v1, jwt, s.deps.BoardSvc)
	registerFeedAPI(v1, jwt, s.deps.Feed)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
