package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Auth HTTP API.
The API exposes enrollment sessions, authentication and the list of
enrolled identities under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port != 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	fmt.Printf("Using %s storage with %d enrolled identities\n", a.cfg.Storage.Backend, a.repo.Len())
	det := newDetector(a.cfg)
	if det == nil {
		fmt.Println("Face detector not configured, only descriptor submissions are accepted")
	}

	server := web.NewServer(a.cfg, a.repo, det, a.log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting Face Auth API on http://%s\n", a.cfg.Web.Addr())
	fmt.Println("Press Ctrl+C to stop")

	return serveUntilDone(ctx, server, 30*time.Second)
}

type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serveUntilDone runs srv until it fails or ctx is cancelled. On cancellation it
// returns only after Shutdown has drained in-flight requests, so callers may
// close the identity store afterwards.
func serveUntilDone(ctx context.Context, srv lifecycle, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-serveErr
}
