package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/presentation/mermaid"
	transport "github.com/themovie-ai/server/internal/transport/http"
	logx "github.com/themovie-ai/server/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Streaming conversation server",
	Long:  `Runs conversation turns through a compiled node graph and streams the answers to clients.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTPAddr
		}
		srv := &http.Server{
			Addr: addr,
			Handler: transport.NewHandler(app.Service,
				transport.WithGraph(app.Runnable),
				transport.WithMetrics(app.Metrics.Handler()),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logx.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logx.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logx.Error().Err(err).Msg("graceful shutdown did not complete")
				return srv.Close()
			}
			logx.Info().Msg("server stopped")
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the graph from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		conversationID, _ := cmd.Flags().GetString("conversation")
		if conversationID == "" {
			conv, err := app.Service.CreateConversation(ctx)
			if err != nil {
				return err
			}
			conversationID = conv.ConversationID
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "conversation %s (empty line or Ctrl-D to quit)\n", conversationID)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				break
			}
			_, err := app.Service.Stream(ctx, conversationID, line, func(f model.Fragment) error {
				_, err := fmt.Fprint(out, f.Text())
				return err
			})
			fmt.Fprintln(out)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		return scanner.Err()
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the compiled graph as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		cfg, err := loadConfig(envFile)
		if err != nil {
			return err
		}
		runnable, err := newGraphOnly(cfg)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), mermaid.Generate(runnable.Entry(), runnable.Describe(), nil))
		return nil
	},
}

func bootstrap(cmd *cobra.Command) (*App, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.StoreBackend = store
	}
	return newApp(cmd.Context(), cfg)
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().String("store", "", "Message store backend: memory, redis or postgres")

	serveCmd.Flags().String("addr", "", "Listen address, overrides HTTP_ADDR")
	chatCmd.Flags().String("conversation", "", "Continue an existing conversation")

	rootCmd.AddCommand(serveCmd, chatCmd, graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
