package main

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
)

// grantCoins records a signed adjustment in the user's ledger.
func (cli *commandLine) grantCoins(uname string, amount int, reason string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	coinSvc := coin.NewService(cli.coinRepo)
	_, err = coinSvc.Adjust(ctx, coin.Adjustment{
		UserID: usr.ID,
		Amount: amount,
		Reason: reason,
	})
	return err
}
