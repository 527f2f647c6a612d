package main

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/ticket"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	eventsvc "github.com/trezcool/academia/services/events"
	logsvc "github.com/trezcool/academia/services/logger"
	uploadsvc "github.com/trezcool/academia/services/uploader"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	redisdb "github.com/trezcool/academia/storage/redis"
)

type (
	// closer releases a resource on shutdown.
	closer func() error

	// closers are released in reverse order of acquisition.
	closers struct {
		fns []closer
	}

	repositories struct {
		dig.Out
		Users    user.Repository
		Members  batch.Users
		Batches  batch.Repository
		Tickets  ticket.Repository
		Contents content.Repository
		Fees     fee.Repository
		Notices  notice.Repository
	}

	contentServices struct {
		dig.Out
		Materials  *content.Service `name:"materials"`
		Recordings *content.Service `name:"recordings"`
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		Uploader      core.Uploader
		Issuer        *auth.Issuer
		Authenticator *auth.Authenticator
		Users         *user.Service
		Batches       *batch.Service
		Tickets       *ticket.Service
		Materials     *content.Service `name:"materials"`
		Recordings    *content.Service `name:"recordings"`
		Fees          *fee.Service
		Notices       *notice.Service
		Shutdown      chan os.Signal
	}
)

func (c *closers) add(fn closer) { c.fns = append(c.fns, fn) }

func (c *closers) closeAll(logger core.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			logger.Error(fmt.Sprintf("closing resource: %v", err), err)
		}
	}
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

type dbLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newValidation(logger core.Logger) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsPath, logger)
	return validate, translator
}

func newRepositories(conf *core.Config, cls *closers, dbLogger dbLoggerParam) (repositories, error) {
	if conf.Database.InMemory() {
		dbLogger.Logger.Warn("using the in-memory database: data will be lost on exit")
		db := inmemdb.Open()
		usrRepo := inmemdb.NewUserRepository(db)
		return repositories{
			Users:    usrRepo,
			Members:  usrRepo,
			Batches:  inmemdb.NewBatchRepository(db),
			Tickets:  inmemdb.NewTicketRepository(db),
			Contents: inmemdb.NewContentRepository(db),
			Fees:     inmemdb.NewFeeRepository(db),
			Notices:  inmemdb.NewNoticeRepository(db),
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return repositories{}, errors.Wrap(err, "opening database")
	}
	cls.add(db.Close)
	if err = database.Migrate(ctx, db.DB); err != nil {
		return repositories{}, errors.Wrap(err, "migrating database")
	}
	dbLogger.Logger.Info(fmt.Sprintf("connected to %s", conf.Database.HostPort()))

	usrRepo := sqlxrepos.NewUserRepository(db)
	return repositories{
		Users:    usrRepo,
		Members:  usrRepo,
		Batches:  sqlxrepos.NewBatchRepository(db),
		Tickets:  sqlxrepos.NewTicketRepository(db),
		Contents: sqlxrepos.NewContentRepository(db),
		Fees:     sqlxrepos.NewFeeRepository(db),
		Notices:  sqlxrepos.NewNoticeRepository(db),
	}, nil
}

// newDenylist keeps revoked tokens in Redis when configured, in memory otherwise.
func newDenylist(conf *core.Config, cls *closers, logger core.Logger) (auth.Denylist, error) {
	if conf.Redis.Address == "" {
		logger.Warn("no redis configured: revoked tokens are kept in memory")
		return inmemdb.NewDenylist(), nil
	}
	client, err := redisdb.Open(context.Background(), conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening redis")
	}
	cls.add(client.Close)
	return redisdb.NewDenylist(client, conf.AppName), nil
}

func newTicketPublisher(conf *core.Config, cls *closers) ticket.Publisher {
	if len(conf.Kafka.Brokers) == 0 {
		return nil
	}
	pub := eventsvc.NewTicketPublisher(conf)
	cls.add(pub.Close)
	return pub
}

func newUploader(conf *core.Config) (core.Uploader, error) {
	if conf.Cloudinary.URL == "" {
		return uploadsvc.NewMemoryUploader("http://" + conf.Server.Host + conf.Server.Address + "/files"), nil
	}
	return uploadsvc.NewCloudinaryUploader(conf)
}

func newEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		return nil, errors.Wrap(err, "parsing email templates")
	}
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(os.Stdout, templates, logger, conf), nil
	}
	return emailsvc.NewSendgridService(templates, logger, conf), nil
}

func newContentServices(repo content.Repository, pol *policy.Policy, validate *validator.Validate) contentServices {
	return contentServices{
		Materials:  content.NewService(content.KindMaterial, repo, pol, validate),
		Recordings: content.NewService(content.KindRecording, repo, pol, validate),
	}
}

func newIssuer(conf *core.Config, users *user.Service) *auth.Issuer {
	return auth.NewIssuer(conf, users)
}

func newAuthenticator(conf *core.Config, users *user.Service, denylist auth.Denylist) *auth.Authenticator {
	return auth.NewAuthenticator(conf, users, denylist)
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Uploader:      p.Uploader,
		Issuer:        p.Issuer,
		Authenticator: p.Authenticator,
		Users:         p.Users,
		Batches:       p.Batches,
		Tickets:       p.Tickets,
		Materials:     p.Materials,
		Recordings:    p.Recordings,
		Fees:          p.Fees,
		Notices:       p.Notices,
		SignalShutdown: func() {
			select {
			case p.Shutdown <- os.Interrupt:
			default:
			}
		},
	})
}

// newContainer returns the dependency injection dig.Container of the API.
func newContainer(shutdown chan os.Signal) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() chan os.Signal { return shutdown }))
	must(c.Provide(func() *closers { return new(closers) }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newValidation))
	must(c.Provide(newRepositories))
	must(c.Provide(newDenylist))
	must(c.Provide(newTicketPublisher))
	must(c.Provide(newUploader))
	must(c.Provide(newEmailService))
	must(c.Provide(policy.New))

	must(c.Provide(user.NewService))
	must(c.Provide(batch.NewService))
	must(c.Provide(ticket.NewService))
	must(c.Provide(newContentServices))
	must(c.Provide(fee.NewService))
	must(c.Provide(notice.NewService))
	must(c.Provide(newIssuer))
	must(c.Provide(newAuthenticator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
