package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"linesim/internal/auth"
)

// runToken implements `linesim token`, printing a signed API token.
func runToken(args []string, secret string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "operator", "token subject")
	roleName := fs.String("role", string(auth.RoleOperator), "viewer, operator or admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("token: AUTH_JWT_SECRET is not set")
	}
	role, ok := auth.NormalizeRole(*roleName)
	if !ok {
		return fmt.Errorf("token: unknown role %q", *roleName)
	}
	signed, err := auth.IssueJWT([]byte(secret), *subject, role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, signed)
	return err
}
