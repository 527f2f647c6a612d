package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

const strongPwd = "Kw9#rtzLmq!"

func setup(t *testing.T) (*commandLine, user.Repository) {
	conf := testutil.Config()
	logger := logsvc.NewDiscardLogger()
	validate, _ := testutil.Validator()
	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	require.NoError(t, err)

	usrRepo := inmemdb.NewUserRepository(inmemdb.Open())
	usrSvc := user.NewService(usrRepo, policy.New(), validate, emailsvc.NewConsoleServiceMock(templates, logger, conf), logger, conf)
	return &commandLine{usrSvc: usrSvc, out: io.Discard}, usrRepo
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	var gotArgs []string
	origMigrate := migrateFunc
	t.Cleanup(func() { migrateFunc = origMigrate })
	migrateFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "attendance", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			tt.check(t, err)
		})
	}

	require.NoError(t, cli.run(context.Background(), []string{"admin", "migrate", "create", "attendance", "sql"}))
	assert.Equal(t, "create", gotCommand)
	assert.Equal(t, []string{"attendance", "sql"}, gotArgs)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, usrRepo := setup(t)
	testutil.CreateUser(t, usrRepo, "Taken", "taken@test.cd", strongPwd, core.RoleStudent, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-email", "boss@test.cd"}, pwd: strongPwd, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "boss@test.cd", "-name", "Boss"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErrStr: "flag provided but not defined"},
		{name: "weak password", args: []string{"adduser", "-email", "boss@test.cd", "-name", "Boss"}, pwd: "123", wantErrStr: "password"},
		{name: "unknown role", args: []string{"adduser", "-email", "boss@test.cd", "-name", "Boss", "-role", "king"}, pwd: strongPwd, wantErrStr: "role"},
		{name: "email taken", args: []string{"adduser", "-email", "TAKEN@test.cd", "-name", "Boss"}, pwd: strongPwd, wantErrStr: "already exists"},
		{name: "admin", args: []string{"adduser", "-email", "Boss@Test.cd", "-name", "Boss"}, pwd: strongPwd},
		{name: "teacher", args: []string{"adduser", "-email", "prof@test.cd", "-name", "Prof", "-role", "teacher"}, pwd: strongPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			tt.check(t, err)
		})
	}

	ctx := context.Background()
	boss, err := usrRepo.GetUserByEmail(ctx, "boss@test.cd")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, boss.Role)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(strongPwd))

	prof, err := usrRepo.GetUserByEmail(ctx, "prof@test.cd")
	require.NoError(t, err)
	assert.Equal(t, core.RoleTeacher, prof.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, usrRepo := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.cd", strongPwd, core.RoleTeacher, true)

	tests := []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " AWE@test.cd "}, pwd: "Zq7!plokMn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			tt.check(t, err)
		})
	}

	refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "password is updated")
	assert.NoError(t, refreshed.CheckPassword("Zq7!plokMn"))
}
