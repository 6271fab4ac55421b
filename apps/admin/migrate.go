package main

import (
	"database/sql"
	"io/fs"

	"github.com/trezcool/goose"

	appfs "github.com/trezcool/darasa/fs"
)

// mockable
var (
	gooseUpFunc = func(db *sql.DB, fsys fs.FS, dir string) error {
		return goose.Up(db, fsys, dir)
	}
	gooseDownFunc = func(db *sql.DB, fsys fs.FS, dir string) error {
		return goose.Down(db, fsys, dir)
	}
	gooseRedoFunc = func(db *sql.DB, fsys fs.FS, dir string) error {
		return goose.Redo(db, fsys, dir)
	}
)

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	var run func(*sql.DB, fs.FS, string) error
	switch args[0] {
	case "up":
		run = gooseUpFunc
	case "down":
		run = gooseDownFunc
	case "redo":
		run = gooseRedoFunc
	default:
		cli.printUsage()
		return errHelp
	}
	return run(cli.db, appfs.FS, "migrations")
}
