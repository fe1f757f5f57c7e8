// Command provision-admin promotes an existing account to administrator.
//
// It works against the configured postgres store and never creates credentials:
// the account must already exist, for example through normal sign-up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"alumni/internal/config"
	"alumni/internal/identity"
	"alumni/internal/members"
	"alumni/internal/platform/database"
	"alumni/internal/platform/logging"
	"alumni/internal/platform/migrate"
)

type options struct {
	email    string
	operator string
	reason   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("provision-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.email, "email", "", "Email address of the account to promote (required)")
	fs.StringVar(&opts.operator, "operator", "", "Name of the operator performing the change (required)")
	fs.StringVar(&opts.reason, "reason", "", "Why the account is being promoted, recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.email = strings.ToLower(strings.TrimSpace(opts.email))
	opts.operator = strings.TrimSpace(opts.operator)
	if opts.email == "" || opts.operator == "" {
		fs.Usage()
		return options{}, errors.New("-email and -operator are required")
	}
	return opts, nil
}

type provisioner struct {
	accounts identity.AccountRepository
	members  *members.Service
}

func (p provisioner) provision(ctx context.Context, opts options) (members.Profile, error) {
	account, err := p.accounts.GetByEmail(ctx, opts.email)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return members.Profile{}, fmt.Errorf("no account exists for %s; the member must sign up first", opts.email)
		}
		return members.Profile{}, fmt.Errorf("look up account: %w", err)
	}
	return p.members.Promote(ctx, opts.operator, opts.reason, account.ID, account.Email)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "provision-admin:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UseInMemoryStore() {
		return errors.New("DATA_STORE=memory has nothing to provision; point DATA_STORE and DATABASE_URL at the service database")
	}

	logger := logging.New(cfg.LogLevel)

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate.Apply(ctx, db, logger); err != nil {
		return err
	}

	p := provisioner{
		accounts: identity.NewPostgresRepository(db),
		members:  members.NewService(members.NewPostgresRepository(db), members.NewPostgresAuditRepository(db), logger),
	}
	profile, err := p.provision(ctx, opts)
	if err != nil {
		return err
	}

	logger.Info("admin provisioned", slog.String("principal_id", profile.ID.String()), slog.String("operator", opts.operator))
	fmt.Fprintf(stdout, "%s is now an approved administrator\n", profile.Email)
	return nil
}
