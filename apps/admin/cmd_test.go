package main

import (
	"bytes"
	"context"
	"database/sql"
	"io/fs"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	usrRepo  user.Repository
	coinRepo interface {
		GetBalance(ctx context.Context, userID string) (int, error)
	}
)

func setup(t *testing.T) *commandLine {
	db := inmemdb.NewDB()
	uRepo := inmemdb.NewUserRepository(db)
	cRepo := inmemdb.NewCoinRepository(db)
	usrRepo = uRepo
	coinRepo = cRepo

	return &commandLine{
		usrRepo:  uRepo,
		coinRepo: cRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommands []string
	record := func(cmd string) func(*sql.DB, fs.FS, string) error {
		return func(*sql.DB, fs.FS, string) error {
			gotCommands = append(gotCommands, cmd)
			return nil
		}
	}
	gooseUpFunc = record("up")
	gooseDownFunc = record("down")
	gooseRedoFunc = record("redo")

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "redo", args: []string{"migrate", "redo"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr == nil || err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			}
		})
	}
	want := []string{"up", "down", "redo"}
	if len(gotCommands) != len(want) {
		t.Fatalf("ran %v, want %v", gotCommands, want)
	}
	for i, cmd := range want {
		if gotCommands[i] != cmd {
			t.Errorf("ran %v, want %v", gotCommands, want)
		}
	}
}

func Test_commandLine_addTeacher(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cr3t!pwd"), nil }

	tests := []cliTest{
		{name: "no args", args: []string{"addteacher"}, wantErr: errHelp},
		{name: "missing email", args: []string{"addteacher", "-name", "Jane", "-username", "janedoe"}, wantErr: errHelp},
		{name: "create", args: []string{"addteacher", "-name", "Jane Doe", "-username", "janedoe", "-email", "jane@test.cd"}},
		{name: "update existing", args: []string{"addteacher", "-name", "Jane D.", "-username", "janedoe", "-email", "jane@test.cd", "-admin"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			usr, err := usrRepo.GetUserByUsername(context.Background(), "janedoe")
			if err != nil {
				t.Fatalf("GetUserByUsername() failed: %v", err)
			}
			if !usr.IsTeacher() {
				t.Errorf("roles = %v, want a teacher role", usr.Roles)
			}
			if usr.IsActive == nil || !*usr.IsActive {
				t.Error("account should be active")
			}
			if err = usr.CheckPassword("s3cr3t!pwd"); err != nil {
				t.Error("password was not set")
			}
			if tt.name == "update existing" && !usr.IsAdmin() {
				t.Errorf("roles = %v, want admin roles as well", usr.Roles)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "aweawe", "awe@test.cd", "mdrlol12", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lolmdr12"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmaomdr12"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed: %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_grantCoins(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "student1", "student1@test.cd", "mdrlol12", user.StudentRoles, true)

	tests := []cliTest{
		{name: "no args", args: []string{"grantcoins"}, wantErr: errHelp},
		{name: "zero amount", args: []string{"grantcoins", "-username", usr.Username, "-reason", "x"}, wantErr: errHelp},
		{name: "no reason", args: []string{"grantcoins", "-username", usr.Username, "-amount", "50"}, wantErr: errHelp},
		{name: "user not found", args: []string{"grantcoins", "-username", "lol", "-amount", "50", "-reason", "x"}, wantErr: user.ErrNotFound},
		{name: "grant", args: []string{"grantcoins", "-username", usr.Username, "-amount", "50", "-reason", "good behavior"}},
		{name: "revoke", args: []string{"grantcoins", "-username", usr.Email, "-amount", "-20", "-reason", "correction"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			}
		})
	}

	balance, err := coinRepo.GetBalance(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetBalance() failed: %v", err)
	}
	if balance != 30 {
		t.Errorf("balance = %d, want 30", balance)
	}
}
