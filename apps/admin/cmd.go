package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrRepo  user.Repository
	coinRepo coin.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addteacher -name NAME -username USERNAME -email EMAIL [-admin] - add or update a teacher account; the password is prompted next")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset a user's password; the password is prompted next")
	fmt.Println("  grantcoins -username USERNAME|EMAIL -amount AMOUNT -reason REASON - record a signed coin adjustment")
	fmt.Println("  migrate up|down|redo - run database migrations")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTeacherCmd := flag.NewFlagSet("addteacher", flag.ExitOnError)
	addTeacherName := addTeacherCmd.String("name", "", "The teacher's full name.")
	addTeacherUname := addTeacherCmd.String("username", "", "The teacher's username.")
	addTeacherEmail := addTeacherCmd.String("email", "", "The teacher's email.")
	addTeacherAdmin := addTeacherCmd.Bool("admin", false, "Also grant admin roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	grantCoinsCmd := flag.NewFlagSet("grantcoins", flag.ExitOnError)
	grantCoinsUname := grantCoinsCmd.String("username", "", "The user's username or email.")
	grantCoinsAmount := grantCoinsCmd.Int("amount", 0, "The signed amount to record.")
	grantCoinsReason := grantCoinsCmd.String("reason", "", "Why the adjustment is made.")

	switch args[1] {
	case "addteacher":
		if err := addTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTeacherName == "" || *addTeacherUname == "" || *addTeacherEmail == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		return cli.addTeacher(*addTeacherName, *addTeacherUname, *addTeacherEmail, pwd, *addTeacherAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "grantcoins":
		if err := grantCoinsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantCoinsUname == "" || *grantCoinsAmount == 0 || *grantCoinsReason == "" {
			grantCoinsCmd.Usage()
			return errHelp
		}
		return cli.grantCoins(*grantCoinsUname, *grantCoinsAmount, *grantCoinsReason)
	case "migrate":
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
