package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
	"todo-api-v2/auth"
	"todo-api-v2/server"
	"todo-api-v2/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			st, err := store.Open(cmd.Context(), cfg.DBDriver, cfg.DBSource)
			if err != nil {
				return fmt.Errorf("could not initialize database: %w", err)
			}
			defer st.Close()

			tokens, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL, nil)
			if err != nil {
				return err
			}

			srv := server.New(st, tokens, server.Options{
				Prefix:         cfg.Prefix,
				RequestTimeout: cfg.RequestTimeout,
			})
			return server.ListenAndServe(cmd.Context(), cfg.Addr, srv.Handler(), shutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TODO_API_ADDR)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			st, err := store.Connect(cmd.Context(), cfg.DBDriver, cfg.DBSource)
			if err != nil {
				return err
			}
			defer st.Close()

			applied, err := st.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "No migrations to apply.")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "Applied %s\n", name)
			}
			return nil
		},
	}
}

func newCreateSuperuserCmd(opts *rootOptions) *cobra.Command {
	var email, username, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff account with superuser rights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			st, err := store.Open(cmd.Context(), cfg.DBDriver, cfg.DBSource)
			if err != nil {
				return err
			}
			defer st.Close()

			req := api.SignUpRequest{Email: email, Username: username, Password: password}
			err = st.InTx(cmd.Context(), func(repo *store.Repo) error {
				_, err := auth.Register(cmd.Context(), repo, req, auth.RoleSuperuser)
				return err
			})
			if err != nil {
				return describeError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Superuser created successfully.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// describeError flattens validation field errors into one readable line.
func describeError(err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || len(appErr.Fields) == 0 {
		return err
	}
	names := make([]string, 0, len(appErr.Fields))
	for name := range appErr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(appErr.Fields[name], " "))
	}
	return errors.New(strings.Join(parts, "; "))
}
