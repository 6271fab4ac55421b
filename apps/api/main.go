package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/realtime"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
	"github.com/trezcool/darasa/storage/object"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		log.Fatalf("setting up database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// set up the change feed
	var feed realtime.Feed
	if conf.Redis.Enabled {
		feed = realtime.NewRedisFeed(conf.Redis.Addr)
	} else {
		feed = realtime.NewHub()
	}

	// set up the attachment bucket
	store, err := object.NewDiskStore(conf.Storage.Dir)
	if err != nil {
		log.Fatalf("setting up object store: %v", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	coinSvc := coin.NewService(sqlxrepos.NewCoinRepository(db))
	taskSvc := task.NewService(sqlxrepos.NewTaskRepository(db), coinSvc)
	commentSvc := comment.NewService(sqlxrepos.NewCommentRepository(db), feed)
	attachmentSvc := attachment.NewService(sqlxrepos.NewAttachmentRepository(db), store, feed)
	shopSvc := shop.NewService(sqlxrepos.NewShopRepository(db), conf)
	boardSvc := board.NewService(sqlxrepos.NewBoardRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.RegisterCustomValidators(validate, translator)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	signalShutdown := func() { shutdown <- syscall.SIGTERM }

	server := echoapi.NewServer(conf.Server.Address(), signalShutdown, conf, &echoapi.Deps{
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		TaskSvc:       taskSvc,
		CommentSvc:    commentSvc,
		AttachmentSvc: attachmentSvc,
		ShopSvc:       shopSvc,
		CoinSvc:       coinSvc,
		BoardSvc:      boardSvc,
		Feed:          feed,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
