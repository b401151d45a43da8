package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/logger"
	"taskmanager/internal/metrics"
	"taskmanager/internal/model"
	"taskmanager/internal/server"
	"taskmanager/internal/service"
	"taskmanager/internal/version"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	seedUID   string
	seedEmail string
	seedName  string

	tokenUID   string
	tokenEmail string
	tokenName  string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the admin account if it does not exist",
	Long: `Insert an admin user with a placeholder uid. The first sign-in with the
same email takes the record over and keeps the admin role.

Flags override the [seed_admin] config section and SEED_ADMIN_* variables.

Examples:
  taskctl seed-admin --email ops@example.com
  taskctl seed-admin --email ops@example.com --name "Ops Team"`,
	RunE: runSeedAdmin,
}

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the MongoDB indexes",
	RunE:  runEnsureIndexes,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a token from the local identity provider",
	Long: `Print a signed bearer token for the local identity provider. Only valid
when IDENTITY_PROVIDER=local; the server must share LOCAL_IDENTITY_SECRET.

Examples:
  taskctl token --uid u1 --email u1@example.com`,
	RunE: runToken,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd, ensureIndexesCmd, tokenCmd, versionCmd)

	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "", "admin email address")
	seedAdminCmd.Flags().StringVar(&seedUID, "uid", "", "placeholder uid (default "+config.DefaultSeedAdminUID+")")
	seedAdminCmd.Flags().StringVar(&seedName, "name", "", "display name")

	tokenCmd.Flags().StringVar(&tokenUID, "uid", "", "subject uid")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "name claim")
	_ = tokenCmd.MarkFlagRequired("uid")
}

func loadConfig(w io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.Log, w), nil
}

// openRepositories returns the stores and a close func.
func openRepositories(ctx context.Context, cfg *config.Config) (*server.Repositories, func(), error) {
	if cfg.Mongo.UsesMemoryStore() {
		return nil, nil, errors.New("taskctl needs a MongoDB URI; the in-memory store lives inside the server process")
	}
	client, err := server.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = client.Disconnect(context.Background()) }
	db := client.Database(cfg.Mongo.Database)
	if err := server.EnsureIndexes(ctx, db); err != nil {
		closeFn()
		return nil, nil, err
	}
	return server.InitRepositories(cfg, db), closeFn, nil
}

func runSeedAdmin(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	seed := cfg.SeedAdmin
	if seedEmail != "" {
		seed.Email = seedEmail
	}
	if seedUID != "" {
		seed.UID = seedUID
	}
	if seedName != "" {
		seed.DisplayName = seedName
	}
	if seed.Email == "" {
		return errors.New("an email is required: pass --email or set SEED_ADMIN_EMAIL")
	}

	repos, closeFn, err := openRepositories(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	// Seeding never touches the identity provider.
	users := service.NewUserService(repos.Users, repos.Tasks, nil, metrics.NopRecorder{}, log)
	user, created, err := users.SeedAdmin(cmd.Context(), seed)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "created admin %s (uid %s)\n", user.Email, user.UID)
	} else {
		fmt.Fprintf(out, "user %s already exists (uid %s, role %s)\n", user.Email, user.UID, user.Role)
	}
	return nil
}

func runEnsureIndexes(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	_, closeFn, err := openRepositories(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	closeFn()
	fmt.Fprintln(cmd.OutOrStdout(), "indexes are in place")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	if cfg.Identity.Provider != config.ProviderLocal {
		return fmt.Errorf("tokens can only be issued by the local provider, not %q", cfg.Identity.Provider)
	}
	gateway, err := identity.NewLocalGateway(cfg.Identity)
	if err != nil {
		return err
	}
	token, err := gateway.Issue(model.Identity{UID: tokenUID, Email: tokenEmail, DisplayName: tokenName})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
