package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"langgraph-chat/app/ai"
	"langgraph-chat/app/auth"
	"langgraph-chat/app/pkg/config"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/session"
	"langgraph-chat/app/shared/observability"
)

var (
	// Global flags
	apiURL         string
	authToken      string
	projectionAddr string
	requestTimeout time.Duration
	verbose        bool

	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Terminal client for the LangGraph chat backend",
	Long: `chat holds running conversations with the LangGraph chat backend.

Every message is routed by the backend to either the therapist or the
logical agent. Run without arguments to start the interactive session.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runRepl,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (default CHAT_API_URL or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token (default CHAT_AUTH_TOKEN); empty chats as a guest")
	rootCmd.PersistentFlags().StringVar(&projectionAddr, "projection-addr", "", "Serve the websocket projection feed on this address, e.g. :8090")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 0, "Per-request timeout (default CHAT_REQUEST_TIMEOUT or 30s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(replCmd, sendCmd, conversationsCmd, healthCmd, tokenCmd)
}

// setup resolves flag defaults from the environment and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	cfg = config.New()
	if apiURL == "" {
		apiURL = cfg.Client.BackendURL
	}
	if authToken == "" {
		authToken = cfg.Client.AuthToken
	}
	if projectionAddr == "" {
		projectionAddr = cfg.Client.ProjectionAddr
	}
	if requestTimeout <= 0 {
		requestTimeout = cfg.Client.RequestTimeout
	}

	logConfig := logger.DefaultConfig()
	logConfig.JSON = cfg.Logging.Format == "json" && verbose
	logConfig.Level = "warn"
	if verbose {
		logConfig.Level = "debug"
	}
	logConfig.Output = cmd.ErrOrStderr()
	log = logger.New(logConfig)
	logger.SetGlobal(log)

	registry = prometheus.NewRegistry()
	metrics = observability.NewMetrics(registry)
	return nil
}

// newIdentity signs in with the configured token, or as a guest when there is none
func newIdentity() (auth.Identity, error) {
	if authToken == "" {
		return &auth.StaticIdentity{
			Loaded:   true,
			SignedIn: true,
			Profile:  auth.User{ID: "guest"},
		}, nil
	}
	identity := auth.NewTokenIdentity(authToken)
	if !identity.IsSignedIn() {
		return nil, fmt.Errorf("the provided token is malformed or expired")
	}
	return identity, nil
}

// startSession signs in and builds the chat session
func startSession(ctx context.Context, syncOnStart bool) (*session.Session, error) {
	identity, err := newIdentity()
	if err != nil {
		return nil, err
	}
	manager := session.NewManager(
		session.HTTPGatewayFactory(apiURL,
			ai.WithTimeout(requestTimeout),
			ai.WithLogger(log),
			ai.WithMetrics(metrics),
		),
		session.Config{
			HealthInterval: cfg.Client.HealthInterval,
			SyncOnStart:    syncOnStart,
		},
		log,
		metrics,
	)
	return manager.Start(ctx, identity)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
