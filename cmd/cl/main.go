package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clockline/internal/app"
	"clockline/internal/config"
	"clockline/internal/db"
	"clockline/internal/domain"
	"clockline/internal/migrate"
	"clockline/internal/repo"
	"clockline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Clockline CLI",
	Long: `Clockline automates Dooray attendance actions (check-in / check-out).
- serve: long-lived HTTP service exposing /enter, /leave, /dooray, /health, /history
- punch: one-shot smoke test performing a single action and printing the outcome
- log tail: recent action history from the workspace database
- config: manage the outcome pattern catalog (clockline.yml)`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CLOCKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(punchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			a, err := app.Build(viper.GetString("workspace"), log)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.Config.Server.Addr
			}
			if basePath == "" {
				basePath = a.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:    a.Config.Server.JWTSecret,
					CommandToken: a.Config.Server.CommandToken,
					Log:          log,
				},
				Log: log,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{Addr: addr, Handler: handler}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("clockline listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}
			log.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from CLOCKLINE_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

func punchCmd() *cobra.Command {
	var date, requester string
	cmd := &cobra.Command{
		Use:       "punch {enter|leave}",
		Short:     "Perform one attendance action and print the outcome",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"enter", "leave"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind domain.ActionKind
			switch args[0] {
			case "enter":
				kind = domain.KindEnter
			case "leave":
				kind = domain.KindLeave
			default:
				return fmt.Errorf("unknown action %q; use enter or leave", args[0])
			}
			log := newLogger()
			a, err := app.Build(viper.GetString("workspace"), log)
			if err != nil {
				return err
			}
			defer a.Close()

			outcome := a.Engine.Perform(cmd.Context(), domain.ActionRequest{
				Kind:      kind,
				BaseDate:  date,
				Requester: requester,
			})
			return printOutcome(outcome)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "target date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&requester, "requester", "", "display name for messages")
	return cmd
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Inspect action history"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			records, err := repo.Repo{DB: conn}.ListRecentActions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRecords(records)
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "number of entries")
	logRoot.AddCommand(tail)
	return logRoot
}

func configCmd() *cobra.Command {
	cfgRoot := &cobra.Command{Use: "config", Short: "Manage the pattern catalog"}
	cfgRoot.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default clockline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfgRoot.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active pattern catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := config.LoadCatalog(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cat)
		},
	})
	return cfgRoot
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printOutcome(outcome domain.ActionOutcome) error {
	if viper.GetBool("json") {
		return printJSON(outcome)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"STATUS", "KIND", "DATE", "DETAIL"})
	t.AppendRow(table.Row{outcome.Status, outcome.Kind, outcome.BaseDate, outcome.Detail})
	t.Render()
	return nil
}

func printRecords(records []domain.ActionRecord) error {
	if viper.GetBool("json") {
		return printJSON(records)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"AT", "KIND", "DATE", "STATUS", "ACTOR", "DETAIL"})
	for _, rec := range records {
		t.AppendRow(table.Row{rec.At, rec.Kind, rec.BaseDate, rec.Status, rec.Actor, rec.Detail})
	}
	t.Render()
	return nil
}
