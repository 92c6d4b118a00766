// Package migrations embeds the Postgres schema.
package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// Source returns a golang-migrate source driver over the embedded files.
func Source() (source.Driver, error) {
	return iofs.New(files, ".")
}
