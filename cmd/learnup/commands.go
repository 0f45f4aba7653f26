package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/learnup/learnup/internal/auth"
	"github.com/learnup/learnup/internal/client"
	"github.com/learnup/learnup/internal/comments"
	"github.com/learnup/learnup/internal/config"
	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/session"
	"github.com/learnup/learnup/internal/thread"
)

// app holds what every client command needs: config, the local session and
// an API client that reads its token from that session.
type app struct {
	cfg     config.Client
	session *session.Store
	api     *client.Client
	term    *Terminal
}

func openApp() (*app, error) {
	cfg := config.LoadClient()
	sess, err := session.Open(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	api := client.New(cfg.BaseURL,
		client.WithTokenSource(sess),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(newLogger(cfg.LogLevel)),
	)
	return &app{cfg: cfg, session: sess, api: api, term: NewTerminal()}, nil
}

func (a *app) Close() error {
	return a.session.Close()
}

func (a *app) service() *comments.Service {
	log := newLogger(a.cfg.LogLevel)
	store := comments.NewMemoryStore()
	resolver := comments.NewResolver(a.api, store,
		comments.WithConcurrency(a.cfg.ResolveConcurrency),
		comments.WithResolverLogger(log),
	)
	return comments.NewService(a.api, store,
		comments.WithResolver(resolver),
		comments.WithNotifier(a.term),
		comments.WithConfirmer(a.term),
		comments.WithProfileSource(a.session),
		comments.WithRefetch(a.cfg.Refetch),
		comments.WithLogger(log),
	)
}

func (a *app) saveSession(ctx context.Context, s client.Session) error {
	return a.session.Save(ctx, session.Record{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      s.User,
		BaseURL:   a.api.BaseURL(),
	})
}

// requireSession fails early with a hint when nobody is signed in.
func (a *app) requireSession(ctx context.Context) error {
	token, err := a.session.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("not logged in (run: learnup login)")
	}
	return nil
}

// withApp opens the app, runs fn and closes the session store.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

// entityFlags registers --scope and --entity on fs.
type entityFlags struct {
	scope  *string
	entity *string
}

func addEntityFlags(fs *flag.FlagSet) entityFlags {
	return entityFlags{
		scope:  fs.String("scope", "", "Entity kind: post, subject or video"),
		entity: fs.String("entity", "", "Entity ID"),
	}
}

func (f entityFlags) set() bool {
	return *f.scope != "" || *f.entity != ""
}

func (f entityFlags) ref() (model.EntityRef, error) {
	scope, ok := model.ParseScope(*f.scope)
	if !ok {
		return model.EntityRef{}, fmt.Errorf("--scope must be post, subject or video, got %q", *f.scope)
	}
	id := strings.TrimSpace(*f.entity)
	if id == "" {
		return model.EntityRef{}, errors.New("--entity is required")
	}
	return model.EntityRef{Scope: scope, ID: id}, nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(os.Stderr)
	return fs.Parse(args)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortOrder(name string) (func(a, b model.Comment) bool, error) {
	switch name {
	case "", "server":
		return nil, nil
	case "newest", "new":
		return thread.NewestFirst, nil
	case "oldest", "old":
		return thread.OldestFirst, nil
	}
	return nil, fmt.Errorf("unknown sort %q (use newest, oldest or server)", name)
}

// ============================================================================
// SESSION COMMANDS
// ============================================================================

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "Display name (required)")
	email := fs.String("email", "", "Email (required)")
	password := fs.String("password", "", "Password (prompted when omitted)")
	avatar := fs.String("avatar", "", "Avatar URL")
	role := fs.String("role", "student", "Role: student or instructor")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return errors.New("--name and --email are required\nUsage: learnup register --name <name> --email <email> [--role instructor]")
	}

	return withApp(func(ctx context.Context, a *app) error {
		pwd := *password
		if pwd == "" {
			var err error
			if pwd, err = a.term.Password("Choose a password: "); err != nil {
				return err
			}
		}
		profile, err := a.api.Register(ctx, client.Registration{
			Name:     *name,
			Email:    *email,
			Password: pwd,
			Avatar:   *avatar,
			Role:     *role,
		})
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		s, err := a.api.Login(ctx, *email, pwd)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := a.saveSession(ctx, s); err != nil {
			return err
		}
		fmt.Printf("✓ Registered %s (%s)\n", profile.Name, profile.Role.Label())
		fmt.Printf("  ID: %s\n", profile.ID)
		return nil
	})
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Email for password login")
	password := fs.String("password", "", "Password (prompted when omitted)")
	key := fs.String("key", "", "Base64 ed25519 private key for key login")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if (*email == "") == (*key == "") {
		return errors.New("provide exactly one of --email or --key\nUsage: learnup login --email <email> | --key <private-key>")
	}

	return withApp(func(ctx context.Context, a *app) error {
		var (
			s   client.Session
			err error
		)
		if *key != "" {
			creds, cerr := client.CredentialsFromKey(*key)
			if cerr != nil {
				return cerr
			}
			s, err = a.api.LoginWithKey(ctx, creds)
		} else {
			pwd := *password
			if pwd == "" {
				if pwd, err = a.term.Password("Password: "); err != nil {
					return err
				}
			}
			s, err = a.api.Login(ctx, *email, pwd)
		}
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := a.saveSession(ctx, s); err != nil {
			return err
		}
		fmt.Printf("✓ Logged in as %s\n", s.User.DisplayName())
		fmt.Printf("  Token expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	})
}

func cmdLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.session.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Logged out")
		return nil
	})
}

func cmdWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		rec, err := a.session.Load(ctx)
		if errors.Is(err, session.ErrNoSession) {
			fmt.Println("Not logged in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", rec.User.DisplayName(), rec.User.Role.Label())
		fmt.Printf("  ID:      %s\n", rec.User.ID)
		fmt.Printf("  Server:  %s\n", rec.BaseURL)
		fmt.Printf("  Expires: %s\n", rec.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	})
}

func cmdKey(args []string) error {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		creds, err := client.GenerateCredentials()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := a.api.AddKey(ctx, auth.AlgEd25519, creds.PublicKey); err != nil {
			return fmt.Errorf("register key: %w", err)
		}
		fmt.Println("✓ Key registered")
		fmt.Printf("  Public key:  %s\n", creds.PublicKey)
		fmt.Printf("  Private key: %s\n", creds.PrivateKeyString())
		fmt.Println("  Keep the private key safe. Log in with: learnup login --key <private-key>")
		return nil
	})
}

// ============================================================================
// THREAD COMMANDS
// ============================================================================

func cmdComments(args []string) error {
	fs := flag.NewFlagSet("comments", flag.ContinueOnError)
	ef := addEntityFlags(fs)
	showIDs := fs.Bool("ids", false, "Show comment IDs")
	sortBy := fs.String("sort", "server", "Root order: newest, oldest or server")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ref, err := ef.ref()
	if err != nil {
		return err
	}
	less, err := sortOrder(*sortBy)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		svc := a.service()
		if err := svc.Load(ctx, ref); err != nil {
			return err
		}
		return printThread(svc, *showIDs, less)
	})
}

func printThread(svc *comments.Service, showIDs bool, less func(a, b model.Comment) bool) error {
	forest, err := svc.Thread()
	if err != nil {
		return err
	}
	if less != nil {
		forest = thread.SortRoots(forest, less)
	}
	ref := svc.Store().Entity()
	fmt.Printf("\n%s (%d comments)\n\n", ref, thread.Count(forest))
	return thread.Render(os.Stdout, forest, svc.Store(), thread.RenderOptions{ShowIDs: showIDs})
}

func cmdComment(args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	ef := addEntityFlags(fs)
	text := fs.String("text", "", "Comment text")
	images := fs.String("images", "", "Comma-separated image URLs")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ref, err := ef.ref()
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		c, err := a.service().Create(ctx, ref, model.Draft{Content: *text, Images: splitList(*images)})
		if err != nil {
			return err
		}
		fmt.Printf("  ID: %s\n", c.ID)
		return nil
	})
}

func cmdReply(args []string) error {
	fs := flag.NewFlagSet("reply", flag.ContinueOnError)
	ef := addEntityFlags(fs)
	parent := fs.String("parent", "", "Comment ID to reply to")
	text := fs.String("text", "", "Reply text")
	images := fs.String("images", "", "Comma-separated image URLs")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ref, err := ef.ref()
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		c, err := a.service().Reply(ctx, ref, *parent, model.Draft{Content: *text, Images: splitList(*images)})
		if err != nil {
			return err
		}
		fmt.Printf("  ID: %s\n", c.ID)
		return nil
	})
}

func cmdEdit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	ef := addEntityFlags(fs)
	id := fs.String("comment", "", "Comment ID to edit")
	text := fs.String("text", "", "New text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("--comment is required\nUsage: learnup edit --comment <id> --text <text> [--scope <kind> --entity <id>]")
	}

	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		svc := a.service()
		loaded, err := loadIfGiven(ctx, svc, ef)
		if err != nil {
			return err
		}
		if _, err := svc.Edit(ctx, *id, *text); err != nil {
			return err
		}
		if loaded {
			return printThread(svc, true, nil)
		}
		return nil
	})
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	ef := addEntityFlags(fs)
	id := fs.String("comment", "", "Comment ID to delete")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("--comment is required\nUsage: learnup delete --comment <id> [--yes] [--scope <kind> --entity <id>]")
	}

	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		a.term.assumeYes = *yes
		svc := a.service()
		loaded, err := loadIfGiven(ctx, svc, ef)
		if err != nil {
			return err
		}
		err = svc.Delete(ctx, *id)
		if errors.Is(err, comments.ErrCancelled) {
			fmt.Println("Cancelled")
			return nil
		}
		if err != nil {
			return err
		}
		if loaded {
			return printThread(svc, true, nil)
		}
		return nil
	})
}

// loadIfGiven loads the thread named by --scope/--entity so that the
// post-mutation reload has an entity to fetch.
func loadIfGiven(ctx context.Context, svc *comments.Service, ef entityFlags) (bool, error) {
	if !ef.set() {
		return false, nil
	}
	ref, err := ef.ref()
	if err != nil {
		return false, err
	}
	if err := svc.Load(ctx, ref); err != nil {
		return false, err
	}
	return true, nil
}
