// Package appfs embeds the files the application ships with.
package appfs

import "embed"

const (
	MigrationsDir       = "migrations"
	EmailTemplatesDir   = "assets/templates/email"
	CommonPasswordsPath = "assets/common-passwords.txt.gz"
)

//go:embed migrations/*.sql
//go:embed assets/templates/email/*
//go:embed assets/common-passwords.txt.gz
var FS embed.FS
