// Command gateway sirve la API REST + GraphQL y ofrece utilidades de
// operación (emitir tokens, listar rutas).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wenex-org/platform-sub000/internal/app"
	"github.com/wenex-org/platform-sub000/internal/config"
	"github.com/wenex-org/platform-sub000/internal/graphql"
	"github.com/wenex-org/platform-sub000/internal/http/router"
	jwtx "github.com/wenex-org/platform-sub000/internal/jwt"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

func main() {
	// .env es opcional
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "API gateway REST + GraphQL sobre los módulos de dominio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", envOr("CONFIG_PATH", ""), "archivo YAML de configuración (env CONFIG_PATH)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
		})
		return cfg, nil
	}

	root.AddCommand(serveCmd(load), tokenCmd(load), routesCmd(load))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.ToContext(ctx, logger.L())

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return a.Run(ctx)
		},
	}
}

func tokenCmd(load loader) *cobra.Command {
	var (
		subject, tenant, clientID string
		scopes, perms             []string
		fromGrants                bool
		ttl                       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un access token firmado con el secreto configurado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if fromGrants {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				a, err := app.New(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
				stored, err := a.PermsFor(ctx, tenant, subject)
				if err != nil {
					return fmt.Errorf("load grants: %w", err)
				}
				perms = append(perms, stored...)
			}
			issuer := jwtx.NewIssuer(cfg.Auth.Issuer, []byte(cfg.Auth.Secret))
			issuer.AccessTTL = cfg.Auth.AccessTTL
			tok, exp, err := issuer.IssueAccess(jwtx.AccessRequest{
				Subject:  subject,
				Tenant:   tenant,
				ClientID: clientID,
				Scopes:   scopes,
				Perms:    perms,
				TTL:      ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "claim sub")
	cmd.Flags().StringVar(&tenant, "tenant", "", "claim tid")
	cmd.Flags().StringVar(&clientID, "client-id", "", "claim cid")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scopes (<contexto>:read|write|manage o root)")
	cmd.Flags().StringSliceVar(&perms, "perm", nil, "perms (<acción>:<recurso>[:own])")
	cmd.Flags().BoolVar(&fromGrants, "from-grants", false, "agrega los perms de los grants vigentes del subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "duración del token (default auth.access_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func routesCmd(load loader) *cobra.Command {
	var withGraphQL bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Lista las rutas REST (y los campos GraphQL) de todos los módulos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// las rutas no dependen del backend configurado
			cfg.Storage.Driver = "memory"
			cfg.Cache.Kind = "none"
			cfg.Rate.Enabled = false
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			for _, r := range router.Routes(a.Modules) {
				fmt.Fprintln(out, r)
			}
			if withGraphQL {
				fmt.Fprintln(out, strings.Repeat("─", 40))
				for _, f := range graphql.Fields(a.Modules) {
					fmt.Fprintln(out, f)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withGraphQL, "graphql", false, "incluye los campos GraphQL")
	return cmd
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
