package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	if err := run(std); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

func run(std *log.Logger) error {
	ctx := context.Background()

	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if conf.Database.InMemory() {
		return errors.Errorf("admin commands need a persistent database, %q engine configured", conf.Database.Engine)
	}
	logger := logsvc.NewRollbarLogger(std, conf)

	// set up DB
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsPath, logger)

	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		return errors.Wrap(err, "parsing email templates")
	}
	mailSvc := emailsvc.NewConsoleService(os.Stdout, templates, logger, conf)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), policy.New(), validate, mailSvc, logger, conf)

	// start CLI
	cli := commandLine{db: db.DB, usrSvc: usrSvc, out: os.Stdout}
	return cli.run(ctx, os.Args)
}
