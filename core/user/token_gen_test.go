package user

import (
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := &core.Config{
		SecretKey:                       []byte("secret"),
		PasswordResetTimeoutDelta:       3 * 24 * time.Hour,
		AccountConfirmationTimeoutDelta: 3 * 24 * time.Hour,
	}

	now := time.Now()
	active := true
	usr := User{
		ID:        "0b36b54a-4ce9-4aea-8e0e-7007d38fa290",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken := MakeToken(usr, purposePasswordReset, conf)
	confirmToken := MakeToken(usr, purposeAccountConfirmation, conf)

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	core.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := MakeToken(usr, purposePasswordReset, conf)
	core.NowFunc = time.Now // reset

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "wrong purpose", usr: usr, token: confirmToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.usr, tt.token, purposePasswordReset, conf); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
