// Package testutil holds the fixtures shared by the tests of the application.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	logsvc "github.com/trezcool/academia/services/logger"
)

// Config returns the configuration used by tests.
func Config() *core.Config {
	return &core.Config{
		Env:              "TEST",
		AppName:          "Academia",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Academia", Address: "noreply@localhost"},
		Server:           core.ServerConfig{Address: ":0", DisableReqLogs: true},
		Auth: core.AuthConfig{
			TokenTTL:             10 * time.Minute,
			RefreshTTL:           4 * time.Hour,
			CookieName:           "token",
			PasswordResetTimeout: 3 * 24 * time.Hour,
		},
		Database: core.DatabaseConfig{Engine: core.EngineMemory},
	}
}

// Validator returns a validator with every custom validation and translation registered.
func Validator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsPath, logsvc.NewDiscardLogger())
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role core.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Subject returns the policy subject of usr, member of batchIDs.
func Subject(usr user.User, batchIDs ...string) policy.Subject {
	return policy.Subject{UserID: usr.ID, Role: usr.Role, BatchIDs: batchIDs}
}
