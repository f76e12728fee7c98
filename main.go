package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/config"
	"library-lending/library"
	"library-lending/shell"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "library",
		Short:        "Interactive library catalog with loans and reservation queues",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "optional YAML/TOML/JSON config file")
	f.String("books", "books.csv", "book file ("+library.BookColumns+")")
	f.String("users", "users.csv", "user file ("+library.UserColumns+")")
	f.Bool("seed", false, "load demo books and users when the files yield none")
	f.String("store", "memory", "entity store backend: memory or sqlite")
	f.Bool("strict-ids", false, "reject repeated book and user ids")
	f.String("default-policy", "queue", "borrow policy for new users: queue or strict")
	f.String("log-level", "warn", "debug, info, warn or error")
	f.String("log-format", "text", "text or json")
	return cmd
}

func run(cfg *config.Config) error {
	logger := cfg.Log.Logger(os.Stderr).With("session", uuid.NewString())
	slog.SetDefault(logger)

	store, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	policy, err := library.ParsePolicy(cfg.Lending.DefaultPolicy)
	if err != nil {
		return err
	}
	mgr := library.NewManager(store, library.WithLogger(logger), library.WithDefaultPolicy(policy))
	defer mgr.Close()

	if err := loadCatalog(mgr, cfg.Catalog, logger); err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("Welcome to the Library Management System!")
	}
	sess := shell.New(mgr, os.Stdin, os.Stdout, shell.Interactive(interactive), shell.WithLogger(logger))
	return sess.Run()
}

func openStore(cfg config.Store) (library.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := library.NewSQLiteStore(cfg.StrictIDs)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return library.NewMemoryStore(cfg.StrictIDs), nil
	}
}

func loadCatalog(mgr *library.Manager, cfg config.Catalog, logger *slog.Logger) error {
	books, bookReport, err := library.LoadBooksFile(cfg.BooksFile)
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	users, userReport, err := library.LoadUsersFile(cfg.UsersFile)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if cfg.Seed && len(books) == 0 && len(users) == 0 {
		books, users = library.SeedBooks(), library.SeedUsers()
		bookReport = library.LoadReport{Source: "seed", Rows: len(books), Loaded: len(books)}
		userReport = library.LoadReport{Source: "seed", Rows: len(users), Loaded: len(users)}
	}

	if err := library.ImportBooks(mgr, books, &bookReport); err != nil {
		return err
	}
	if err := library.ImportUsers(mgr, users, &userReport); err != nil {
		return err
	}

	for _, r := range []library.LoadReport{bookReport, userReport} {
		logger.Info("catalog loaded", "source", r.Source, "rows", r.Rows, "loaded", r.Loaded, "skipped", r.Skipped)
		for _, p := range r.Problems {
			logger.Warn("row skipped", "source", r.Source, "problem", p)
		}
	}
	return nil
}
