package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-smartaccount/core/chainio/signer"
	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/core/workflow"
	"github.com/AvaProtocol/ap-smartaccount/metrics"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var (
	envFile     string
	configPath  string
	chainName   string
	aaRPCURL    string
	pushgateway string
	debug       bool

	rootCmd = &cobra.Command{
		Use:   "ap-smartaccount",
		Short: "Smart account example CLI",
		Long: `Create an ERC-4337 smart account for your key, fund it and send
user operations through an Alchemy account abstraction endpoint.

Settings are read from the environment or a .env file:
  PRIV_KEY, ALCHEMY_API_KEY, ALCHEMY_API_URL, ALCHEMY_GAS_MANAGER_POLICY_ID`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		lgr, lerr := logger.New(debug)
		if lerr != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			lgr.Error("command failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a dotenv file, ./.env is used when present")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML file overriding chain settings")
	rootCmd.PersistentFlags().StringVar(&chainName, "chain", string(config.SepoliaEnv), fmt.Sprintf("Chain to use, one of %v", config.SupportedChains()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")
	rootCmd.PersistentFlags().StringVar(&aaRPCURL, "aa-rpc-url", "", "Account abstraction RPC URL, replaces the chain default and API key")
	_ = rootCmd.PersistentFlags().MarkHidden("aa-rpc-url")
}

// session is everything a command needs before it talks to the network.
type session struct {
	cfg     *config.Config
	signer  *signer.Signer
	logger  logger.Logger
	metrics *metrics.RunMetrics
}

// newSession loads the configuration and derives the signer. Both fail
// before any client is created.
func newSession(req config.Requirement) (*session, error) {
	cfg, err := config.Load(req, config.LoadOptions{
		EnvFile:    envFile,
		ConfigPath: configPath,
		Chain:      config.ChainEnv(chainName),
	})
	if err != nil {
		return nil, err
	}

	s, err := signer.FromPrivateKeyHex(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	lgr, err := logger.New(debug)
	if err != nil {
		return nil, fmt.Errorf("cannot create logger: %w", err)
	}
	lgr.Debug("configuration loaded", "config", cfg.String(), "signer", s.Address().Hex())

	return &session{cfg: cfg, signer: s, logger: lgr, metrics: metrics.NewRunMetrics()}, nil
}

func (s *session) runner(cmd *cobra.Command) *workflow.Runner {
	return workflow.NewRunner(s.logger,
		workflow.WithRecorder(s.metrics),
		workflow.WithOutput(cmd.OutOrStdout()))
}

// finish pushes the run metrics when a Pushgateway is configured. A push
// failure never hides the run error.
func (s *session) finish(ctx context.Context, out *workflow.Outcome, runErr error) error {
	if pushgateway == "" || out == nil {
		return runErr
	}

	if err := s.metrics.Push(ctx, pushgateway, out.RunID); err != nil {
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return err
	}
	return runErr
}
