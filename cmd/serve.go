package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hb-chen/flowdesign/internal/config"
	"github.com/hb-chen/flowdesign/internal/editor"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/nodedefaults"
	"github.com/hb-chen/flowdesign/internal/server"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

var (
	addrHTTP, addrGrpc, graphFile string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editor server",
	Long:  `Start the HTTP and gRPC servers hosting one graph editing session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = config.Viper().BindPFlag("server.http.addr", cmd.Flags().Lookup("addr-http"))
		_ = config.Viper().BindPFlag("server.grpc.addr", cmd.Flags().Lookup("addr-grpc"))
		_ = config.Viper().BindPFlag("editor.graph_file", cmd.Flags().Lookup("graph"))

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		session, err := initSession(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		defer session.Close()

		// Create context
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Setup signal handling
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := server.Serve(ctx, cfg, session); err != nil {
				logger.Errorf("Server error: %v", err)
			}
		}()

		// Wait for interrupt signal
		sig := <-quit
		logger.Infof("Received signal %s, shutting down...", sig.String())
		cancel()
		<-done

		return nil
	},
}

func init() {
	// Add flags to serve command
	serveCmd.Flags().StringVar(&addrHTTP, "addr-http", "", "HTTP server address (overrides config file)")
	serveCmd.Flags().StringVar(&addrGrpc, "addr-grpc", "", "gRPC server address (overrides config file)")
	serveCmd.Flags().StringVar(&graphFile, "graph", "", "graph document loaded on start (overrides config file)")

	rootCmd.AddCommand(serveCmd)
}

// initSession creates the editing session and loads the initial graph
func initSession(cfg *config.Config) (*editor.Session, error) {
	defaults, err := nodedefaults.Load(cfg.Editor.DefaultsFile)
	if err != nil {
		return nil, err
	}

	session, err := editor.New(editor.Options{
		Defaults:            defaults,
		NameDebounce:        cfg.Editor.NameDebounce,
		DanglingClearPasses: cfg.Editor.DanglingClearPasses,
		LayoutFrame:         cfg.Editor.Layout.Frame,
		LayoutSettle:        cfg.Editor.Layout.Settle,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Editor.GraphFile != "" {
		doc, err := flow.LoadDocument(cfg.Editor.GraphFile)
		if err != nil {
			session.Close()
			return nil, err
		}
		session.Load(doc)
		logger.Infof("Loaded graph %s", cfg.Editor.GraphFile)
	}

	return session, nil
}
