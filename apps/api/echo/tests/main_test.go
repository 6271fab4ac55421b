package tests

import (
	"io"
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/darasa/apps/api/echo"
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
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/storage/object"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	conf *core.Config
	app  Server
	db   *inmemdb.DB

	usrRepo  user.Repository
	taskRepo task.Repository
	shopRepo shop.Repository
	coinRepo coin.Repository

	usrSvc  user.ServiceInterface
	taskSvc task.ServiceInterface
	coinSvc coin.ServiceInterface

	errMissingToken = httpErr{Error: "missing or malformed jwt", Kind: "unauthorized"}
	errForbidden    = httpErr{Error: "permission denied", Kind: "forbidden"}
	errNotFound     = httpErr{Error: "not found", Kind: "not_found"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()

	// set up DB & repos
	db = inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	taskRepo = inmemdb.NewTaskRepository(db)
	shopRepo = inmemdb.NewShopRepository(db)
	coinRepo = inmemdb.NewCoinRepository(db)

	// set up services
	feed := realtime.NewHub()
	store, err := object.NewDiskStore(os.TempDir())
	if err != nil {
		panic(err)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewServiceMock(usrRepo, mailSvc, conf)
	coinSvc = coin.NewService(coinRepo)
	taskSvc = task.NewService(taskRepo, coinSvc)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.RegisterCustomValidators(validate, translator)

	// set up server
	app = NewServer(
		"",  /* addr */
		nil, /* signalShutdown */
		conf,
		&Deps{
			Logger:        logsvc.NewStdLogger(log.New(io.Discard, "", 0)),
			Validate:      validate,
			Translator:    translator,
			UserSvc:       usrSvc,
			TaskSvc:       taskSvc,
			CommentSvc:    comment.NewService(inmemdb.NewCommentRepository(db), feed),
			AttachmentSvc: attachment.NewService(inmemdb.NewAttachmentRepository(db), store, feed),
			ShopSvc:       shop.NewService(shopRepo, conf),
			CoinSvc:       coinSvc,
			BoardSvc:      board.NewService(inmemdb.NewBoardRepository(db)),
			Feed:          feed,
		},
	)

	os.Exit(m.Run())
}
