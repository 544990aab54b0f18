package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/storage/database"
	"github.com/trezcool/learnhub/storage/database/postgres"
	"github.com/trezcool/learnhub/tests"
)

var now = time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*testutil.Env, *commandLine) {
	env := testutil.NewEnv(t, now)
	return env, &commandLine{usrSvc: env.UserSvc}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

// mockPasswords makes the password prompt return pwds, one per call.
func mockPasswords(pwds ...string) {
	i := 0
	readPasswordFunc = func(fd int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, nil
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	_, cli := setup(t)

	defer func(orig func(*sql.DB, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
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
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course_badges", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate_postgres(t *testing.T) {
	db := testutil.PrepareDB(t)
	cli := &commandLine{db: db.DB}

	for _, cmd := range []string{"status", "version", "up"} {
		t.Run(cmd, func(t *testing.T) {
			assert.NoError(t, cli.run([]string{"admin", "migrate", cmd}))
		})
	}

	// the embedded migrations are all applied
	var version int64
	require.NoError(t, db.Get(&version, "SELECT max(version_id) FROM goose_db_version"))
	assert.Equal(t, int64(1), version)
}

func Test_commandLine_addUser(t *testing.T) {
	env, cli := setup(t)
	testutil.CreateStudent(t, env, "taken")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{
			name: "passwords mismatch", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"},
			extra: []string{testutil.Password, "lol"}, wantErr: errPasswordMismatch,
		},
		{
			name: "weak password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"},
			extra: []string{"password", "password"}, wantErrStr: "validation",
		},
		{
			name: "username taken", args: []string{"adduser", "-username", "taken", "-email", "boss@test.cd"},
			extra: []string{testutil.Password, testutil.Password}, wantErrStr: "validation",
		},
		{
			name:  "created",
			args:  []string{"adduser", "-username", "Boss", "-email", "boss@test.cd", "-first", "Big", "-last", "Boss"},
			extra: []string{testutil.Password, testutil.Password},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwds, _ := tt.extra.([]string)

		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(pwds...)
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}

	usr, err := env.UserSvc.GetByUsernameOrEmail(context.Background(), "boss@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "boss", usr.Username)
	assert.True(t, usr.IsEmployee())
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	acc, err := env.UserSvc.GetAccount(context.Background(), usr.ID)
	require.NoError(t, err)
	p, ok := acc.Employee()
	require.True(t, ok)
	assert.Equal(t, "EMP-BOSS", p.EmployeeNumber)
	assert.Equal(t, "Administrator", p.Position)
	assert.Equal(t, now, p.HireDate)
}

func Test_commandLine_resetPassword(t *testing.T) {
	env, cli := setup(t)
	usr := testutil.CreateStudent(t, env, "awe")

	newPwd := "Qw3rty!Uiop"
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", usr.Username}, extra: "12345678", wantErrStr: "validation"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: newPwd},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, extra: testutil.Password},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)

		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(pwd)
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
				return
			case tt.wantErrStr != "":
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			refreshed, err := env.UserSvc.GetByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_resetPassword_postgres(t *testing.T) {
	db := testutil.PrepareDB(t)
	env := testutil.NewEnv(t, now)
	svc := user.NewService(database.NewTransactor(db), postgres.NewUserRepository(db), env.Validate, env.Clock)
	cli := &commandLine{db: db.DB, usrSvc: svc}

	mockPasswords(testutil.Password, testutil.Password)
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd"}))

	newPwd := "Qw3rty!Uiop"
	mockPasswords(newPwd)
	require.NoError(t, cli.run([]string{"admin", "resetpassword", "-username", "boss"}))

	usr, err := svc.GetByUsernameOrEmail(context.Background(), "boss")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPwd))
}
