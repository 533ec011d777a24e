// Command admin runs moderation actions from the command line as a signed-in
// admin.
//
//	admin -email a@example.org -password secret ban <uid>
//	admin grant-admin <uid>
//
// grant-admin writes the role directly and needs no sign-in; it exists to
// create the first admin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/app"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/internal/session"
	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

const usage = `usage: admin [-email E -password P] <command> [arg] [value]

commands:
  users                 list all users
  ban <uid>             ban a user
  unban <uid>           restore a banned user
  promote <uid>         make a user an admin
  demote <uid>          make an admin a regular user
  rename <uid> <name>   change a user's display name
  set-email <uid> <e>   change a user's contact email
  delete-comment <id>   replace a comment with the moderation placeholder
  reconcile             recompute every thread's comment count
  grant-admin <uid>     make a user an admin without signing in
`

func main() {
	email := flag.String("email", os.Getenv(config.EnvPrefix+"_ADMIN_EMAIL"), "admin account email")
	password := flag.String("password", os.Getenv(config.EnvPrefix+"_ADMIN_PASSWORD"), "admin account password")
	timeout := flag.Duration("timeout", 30*time.Second, "overall command timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg, value := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()
	logger := logging.WithComponent("admin-cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	result, err := run(ctx, a, *email, *password, command, arg, value)
	if err != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "admin %s: %v\n", command, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("Failed to write result", zap.Error(err))
	}
}

func run(ctx context.Context, a *app.App, email, password, command, arg, value string) (interface{}, error) {
	needsArg := map[string]bool{
		"ban": true, "unban": true, "promote": true, "demote": true,
		"delete-comment": true, "grant-admin": true,
		"rename": true, "set-email": true,
	}
	if needsArg[command] && arg == "" {
		return nil, fmt.Errorf("%s needs an argument", command)
	}
	if (command == "rename" || command == "set-email") && value == "" {
		return nil, fmt.Errorf("%s needs a uid and a value", command)
	}

	if command == "grant-admin" {
		p, err := a.Profiles.SetRole(ctx, arg, models.RoleAdmin)
		if err != nil {
			return nil, err
		}
		return models.UserFromProfile(p), nil
	}

	actor, closeSession, err := signIn(ctx, a, email, password)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	svc := a.Forum
	switch command {
	case "users":
		return svc.ListUsers(ctx, actor)
	case "ban":
		return svc.BanUser(ctx, actor, arg)
	case "unban":
		return svc.UnbanUser(ctx, actor, arg)
	case "promote":
		return svc.SetRole(ctx, actor, arg, models.RoleAdmin)
	case "demote":
		return svc.SetRole(ctx, actor, arg, models.RoleUser)
	case "rename":
		return svc.UpdateUser(ctx, actor, arg, forum.UserInput{DisplayName: &value})
	case "set-email":
		return svc.UpdateUser(ctx, actor, arg, forum.UserInput{Email: &value})
	case "delete-comment":
		if err := svc.DeleteComment(ctx, actor, arg); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": arg}, nil
	case "reconcile":
		return svc.Reconcile(ctx, actor)
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

// signIn opens a session for the admin account and returns its user.
func signIn(ctx context.Context, a *app.App, email, password string) (*models.User, func(), error) {
	if email == "" || password == "" {
		return nil, nil, errors.New("-email and -password are required")
	}

	client := identity.NewClient(a.Backend)
	sess := session.New(client, a.Profiles, logging.WithComponent("admin-session"))
	if err := sess.Start(ctx); err != nil {
		return nil, nil, err
	}
	closeSession := func() {
		if err := sess.Logout(context.Background()); err != nil {
			logging.WithComponent("admin-cli").Warn("Sign-out failed", zap.Error(err))
		}
		sess.Close()
	}

	snap, err := sess.Login(ctx, email, password)
	if err != nil {
		closeSession()
		return nil, nil, err
	}
	if snap.State != session.Authenticated {
		closeSession()
		return nil, nil, fmt.Errorf("%s has no profile", email)
	}
	return snap.User, closeSession, nil
}
