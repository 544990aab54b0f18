package main

import (
	"context"
	"strings"

	"github.com/trezcool/learnhub/core/user"
)

type newEmployee struct {
	username, email  string
	first, last      string
	position, number string
	password         string
}

// addUser registers an employee account, the only role allowed to moderate the platform.
func (cli *commandLine) addUser(ne newEmployee) error {
	number := ne.number
	if number == "" {
		number = "EMP-" + strings.ToUpper(ne.username)
	}
	_, err := cli.usrSvc.Register(context.Background(), user.NewUser{
		Username:        ne.username,
		Email:           ne.email,
		FirstName:       ne.first,
		LastName:        ne.last,
		Role:            user.RoleEmployee,
		Password:        ne.password,
		PasswordConfirm: ne.password,
		Employee: &user.EmployeeData{
			Position:       ne.position,
			HireDate:       cli.usrSvc.Now(),
			EmployeeNumber: number,
		},
	})
	return err
}
