// Package main is the administrative CLI for Emberstore. It talks to the
// database directly and is intended for bootstrapping a fresh installation
// (first user, first access key) and for operational tasks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/cache/memory"
	"github.com/emberstore/emberstore/internal/config"
	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/iam"
	"github.com/emberstore/emberstore/internal/lock"
	"github.com/emberstore/emberstore/internal/pkg/crypto"
	"github.com/emberstore/emberstore/internal/repository"
	"github.com/emberstore/emberstore/internal/repository/postgres"
	"github.com/emberstore/emberstore/internal/repository/sqlite"
	"github.com/emberstore/emberstore/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `Usage: emberstore-admin [-config <dir>] <command> [options]

Commands:
  migrate                          Run database migrations
  create-user                      Create a user
  create-access-key                Create an access key for a user
  put-bucket-policy                Attach a policy document to a bucket
  put-user-policy                  Attach a policy document to a user
  check-access                     Evaluate a single authorization decision
  version                          Print version information
  help                             Print this help

Run 'emberstore-admin <command> -h' for command options.
`

func main() {
	configPath := flag.String("config", "", "path to the configuration directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	command, commandArgs := args[0], args[1:]

	switch command {
	case "version":
		fmt.Printf("emberstore-admin %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	case "help", "-h", "--help":
		flag.Usage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var run func(ctx context.Context, app *app, args []string) error
	switch command {
	case "migrate":
		run = cmdMigrate
	case "create-user":
		run = cmdCreateUser
	case "create-access-key":
		run = cmdCreateAccessKey
	case "put-bucket-policy":
		run = cmdPutBucketPolicy
	case "put-user-policy":
		run = cmdPutUserPolicy
	case "check-access":
		run = cmdCheckAccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		flag.Usage()
		os.Exit(2)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	if err := run(ctx, a, commandArgs); err != nil {
		fatalf("%v", err)
	}
}

// app bundles everything a command needs. Commands share the server's
// service layer so validation and encryption behave identically.
type app struct {
	cfg    *config.Config
	repos  *repository.Repositories
	health repository.DatabaseHealth

	users    *service.UserService
	iam      *service.IAMService
	policies *service.PolicyService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	var (
		repos  *repository.Repositories
		health repository.DatabaseHealth
	)
	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		repos = &repository.Repositories{
			User:      postgres.NewUserRepository(db),
			AccessKey: postgres.NewAccessKeyRepository(db),
			Bucket:    postgres.NewBucketRepository(db),
			Policy:    postgres.NewPolicyRepository(db),
		}
		health = db
	} else {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		repos = &repository.Repositories{
			User:      sqlite.NewUserRepository(db),
			AccessKey: sqlite.NewAccessKeyRepository(db),
			Bucket:    sqlite.NewBucketRepository(db),
			Policy:    sqlite.NewPolicyRepository(db),
		}
		health = db
	}

	encryptionKey, err := cfg.Auth.GetEncryptionKey()
	if err != nil {
		health.Close()
		return nil, fmt.Errorf("auth encryption key: %w", err)
	}
	encryptor, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		health.Close()
		return nil, fmt.Errorf("auth encryptor: %w", err)
	}

	return &app{
		cfg:      cfg,
		repos:    repos,
		health:   health,
		users:    service.NewUserService(repos.User, logger),
		iam:      service.NewIAMService(repos.AccessKey, repos.User, encryptor, logger),
		policies: service.NewPolicyService(repos.Policy, repos.Bucket, repos.User, memory.NewCache(), lock.NewMemoryLocker(), logger),
	}, nil
}

func (a *app) Close() {
	if a.health != nil {
		_ = a.health.Close()
	}
}

func cmdMigrate(_ context.Context, a *app, _ []string) error {
	// newApp already ran migrations; reaching here means they applied.
	fmt.Printf("migrations applied (%s)\n", a.cfg.Database.Driver)
	return nil
}

func cmdCreateUser(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "password (required)")
	roles := fs.String("roles", "", "comma-separated extra roles (admin, root)")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		return fmt.Errorf("create-user: -username, -email and -password are required")
	}

	user, err := a.users.Create(ctx, service.CreateUserInput{
		Username: *username,
		Email:    *email,
		Password: *password,
		Roles:    splitList(*roles),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("created user %q (id %d, roles %s)\n", user.User.Username, user.User.ID, strings.Join(user.User.Roles, ","))
	return nil
}

func cmdCreateAccessKey(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-access-key", flag.ExitOnError)
	username := fs.String("username", "", "owner username (required)")
	description := fs.String("description", "", "key description")
	expiresIn := fs.Duration("expires-in", 0, "expiry relative to now (0 = never)")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("create-access-key: -username is required")
	}

	user, err := a.users.GetByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	input := service.CreateAccessKeyInput{
		UserID:      user.ID,
		Description: *description,
	}
	if *expiresIn > 0 {
		t := time.Now().UTC().Add(*expiresIn)
		input.ExpiresAt = &t
	}

	out, err := a.iam.CreateAccessKey(ctx, input)
	if err != nil {
		return fmt.Errorf("create access key: %w", err)
	}

	// The secret is only recoverable here; it is stored encrypted.
	fmt.Printf("access_key_id: %s\n", out.AccessKeyID)
	fmt.Printf("secret_key:    %s\n", out.SecretKey)
	return nil
}

func cmdPutBucketPolicy(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("put-bucket-policy", flag.ExitOnError)
	bucket := fs.String("bucket", "", "bucket name (required)")
	file := fs.String("file", "", "policy document file, '-' for stdin (required)")
	fs.Parse(args)

	if *bucket == "" || *file == "" {
		return fmt.Errorf("put-bucket-policy: -bucket and -file are required")
	}

	document, err := readDocument(*file)
	if err != nil {
		return err
	}

	policy, err := a.policies.PutBucketPolicy(ctx, *bucket, document)
	if err != nil {
		return fmt.Errorf("put bucket policy: %w", err)
	}

	fmt.Printf("policy %s attached to bucket %q\n", policy.ID, *bucket)
	return nil
}

func cmdPutUserPolicy(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("put-user-policy", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	file := fs.String("file", "", "policy document file, '-' for stdin (required)")
	fs.Parse(args)

	if *username == "" || *file == "" {
		return fmt.Errorf("put-user-policy: -username and -file are required")
	}

	document, err := readDocument(*file)
	if err != nil {
		return err
	}

	policy, err := a.policies.PutUserPolicy(ctx, *username, document)
	if err != nil {
		return fmt.Errorf("put user policy: %w", err)
	}

	fmt.Printf("policy %s attached to user %q\n", policy.ID, *username)
	return nil
}

func cmdCheckAccess(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("check-access", flag.ExitOnError)
	username := fs.String("username", "", "username (empty = anonymous)")
	action := fs.String("action", "", "action, e.g. s3:GetObject (required)")
	bucket := fs.String("bucket", "", "bucket name (required)")
	object := fs.String("object", "", "object key (optional)")
	fs.Parse(args)

	if *action == "" || *bucket == "" {
		return fmt.Errorf("check-access: -action and -bucket are required")
	}

	var identity iam.Identity
	if *username != "" {
		user, err := a.users.GetByUsername(ctx, *username)
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		identity = iam.Identity{Username: user.Username, Roles: user.Roles}
	}

	resource := domain.BucketResourcePrefix + *bucket
	if *object != "" {
		resource += "/" + strings.TrimPrefix(*object, "/")
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	authorizer := iam.NewAuthorizer(a.policies, nil, logger)

	err := authorizer.RequireAll(ctx, identity, iam.Rule{Action: *action, Resource: resource})
	if err != nil {
		fmt.Printf("DENY  %s on %s\n", *action, resource)
		os.Exit(1)
	}

	fmt.Printf("ALLOW %s on %s\n", *action, resource)
	return nil
}

func readDocument(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = os.ReadFile("/dev/stdin")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read policy document: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("policy document is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
