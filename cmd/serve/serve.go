package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/endorses/paycat/internal/pkg/cmdutil"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/signals"
	"github.com/endorses/paycat/internal/pkg/switchd"
	"github.com/endorses/paycat/internal/pkg/tlsutil"
	"github.com/endorses/paycat/internal/pkg/txn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transaction switch",
	Long: `Run the AS2805 transaction switch.

Terminals connect over TCP and exchange length-prefixed AS2805 messages.
Every request is answered: amounts below the approval ceiling are approved,
everything else is declined. Each exchange is mirrored to the audit trail
(memory, and optionally PostgreSQL, Redis counters and a PCAP capture).

Example:
  paycat serve --listen :8000
  paycat serve --framing binary2 --header-length 5 --dictionary fields.yaml
  paycat serve --postgres-dsn postgres://paycat@localhost/paycat --redis-addr localhost:6379
  paycat serve --tls --tls-cert server.crt --tls-key server.key --health-listen :50051`,
	RunE: runServe,
}

var (
	listenAddr        string
	maxSessions       int
	headerLength      int
	framing           string
	maxFrameSize      string
	approvalCeiling   int64
	processingTimeout time.Duration
	idleTimeout       time.Duration
	writeTimeout      time.Duration
	dictionaryPath    string
	healthListen      string
	statsInterval     time.Duration
	// TLS flags
	tlsEnabled    bool
	tlsCertFile   string
	tlsKeyFile    string
	tlsCAFile     string
	tlsClientAuth bool
	// Audit flags
	auditQueueSize int
	memoryCapacity int
	postgresDSN    string
	redisAddr      string
	redisPassword  string
	redisDB        int
	pcapFile       string
	// API
	apiListen string
)

func init() {
	ServeCmd.Flags().StringVarP(&listenAddr, "listen", "l", constants.DefaultListenAddr, "Listen address for terminal connections (host:port)")
	ServeCmd.Flags().IntVarP(&maxSessions, "max-sessions", "m", constants.DefaultMaxSessions, "Maximum number of concurrent terminal connections")
	ServeCmd.Flags().IntVar(&headerLength, "header-length", 0, "Length of the opaque header preceding the MTI")
	ServeCmd.Flags().StringVar(&framing, "framing", "ascii4", "Frame length prefix: ascii4, binary2 or binary4")
	ServeCmd.Flags().StringVar(&maxFrameSize, "max-frame-size", "8K", "Largest accepted message (e.g. 8K)")
	ServeCmd.Flags().Int64Var(&approvalCeiling, "approval-ceiling", txn.DefaultCeiling, "Amounts below this value (minor units) are approved")
	ServeCmd.Flags().DurationVar(&processingTimeout, "processing-timeout", constants.DefaultProcessingTimeout, "Deadline for answering one request")
	ServeCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", constants.DefaultIdleTimeout, "Close connections idle for this long")
	ServeCmd.Flags().DurationVar(&writeTimeout, "write-timeout", constants.DefaultWriteTimeout, "Deadline for writing one response")
	ServeCmd.Flags().StringVar(&dictionaryPath, "dictionary", "", "YAML field dictionary (default: built-in AS2805 dictionary)")
	ServeCmd.Flags().StringVar(&healthListen, "health-listen", "", "Serve the gRPC health service on this address")
	ServeCmd.Flags().DurationVar(&statsInterval, "stats-interval", constants.DefaultStatsInterval, "Interval of the statistics log line (0 disables)")

	// TLS configuration
	ServeCmd.Flags().BoolVar(&tlsEnabled, "tls", false, "Enable TLS on the terminal listener")
	ServeCmd.Flags().StringVar(&tlsCertFile, "tls-cert", "", "Path to server TLS certificate")
	ServeCmd.Flags().StringVar(&tlsKeyFile, "tls-key", "", "Path to server TLS key")
	ServeCmd.Flags().StringVar(&tlsCAFile, "tls-ca", "", "Path to CA certificate for client verification (mutual TLS)")
	ServeCmd.Flags().BoolVar(&tlsClientAuth, "tls-client-auth", false, "Require client certificate authentication (mutual TLS)")

	// Audit trail
	ServeCmd.Flags().IntVar(&auditQueueSize, "audit-queue-size", constants.AuditQueueBuffer, "Audit records buffered before dropping")
	ServeCmd.Flags().IntVar(&memoryCapacity, "memory-capacity", constants.DefaultMemoryRecords, "Recent audit records kept in memory")
	ServeCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string for the audit store")
	ServeCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for aggregate counters")
	ServeCmd.Flags().StringVar(&redisPassword, "redis-password", "", "Redis password")
	ServeCmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number")
	ServeCmd.Flags().StringVarP(&pcapFile, "pcap-file", "w", "", "Write every message to a PCAP capture")

	ServeCmd.Flags().StringVar(&apiListen, "api-listen", constants.DefaultAPIListenAddr, "Query API address (empty disables)")

	// Bind to viper for config file support
	viper.BindPFlag("switch.listen", ServeCmd.Flags().Lookup("listen"))
	viper.BindPFlag("switch.max-sessions", ServeCmd.Flags().Lookup("max-sessions"))
	viper.BindPFlag("switch.header-length", ServeCmd.Flags().Lookup("header-length"))
	viper.BindPFlag("switch.framing", ServeCmd.Flags().Lookup("framing"))
	viper.BindPFlag("switch.max-frame-size", ServeCmd.Flags().Lookup("max-frame-size"))
	viper.BindPFlag("switch.approval-ceiling", ServeCmd.Flags().Lookup("approval-ceiling"))
	viper.BindPFlag("switch.processing-timeout", ServeCmd.Flags().Lookup("processing-timeout"))
	viper.BindPFlag("switch.idle-timeout", ServeCmd.Flags().Lookup("idle-timeout"))
	viper.BindPFlag("switch.write-timeout", ServeCmd.Flags().Lookup("write-timeout"))
	viper.BindPFlag("switch.dictionary", ServeCmd.Flags().Lookup("dictionary"))
	viper.BindPFlag("switch.health-listen", ServeCmd.Flags().Lookup("health-listen"))
	viper.BindPFlag("switch.stats-interval", ServeCmd.Flags().Lookup("stats-interval"))
	viper.BindPFlag("switch.tls", ServeCmd.Flags().Lookup("tls"))
	viper.BindPFlag("switch.tls-cert", ServeCmd.Flags().Lookup("tls-cert"))
	viper.BindPFlag("switch.tls-key", ServeCmd.Flags().Lookup("tls-key"))
	viper.BindPFlag("switch.tls-ca", ServeCmd.Flags().Lookup("tls-ca"))
	viper.BindPFlag("switch.tls-client-auth", ServeCmd.Flags().Lookup("tls-client-auth"))
	viper.BindPFlag("audit.queue-size", ServeCmd.Flags().Lookup("audit-queue-size"))
	viper.BindPFlag("audit.memory-capacity", ServeCmd.Flags().Lookup("memory-capacity"))
	viper.BindPFlag("audit.postgres-dsn", ServeCmd.Flags().Lookup("postgres-dsn"))
	viper.BindPFlag("audit.redis-addr", ServeCmd.Flags().Lookup("redis-addr"))
	viper.BindPFlag("audit.redis-password", ServeCmd.Flags().Lookup("redis-password"))
	viper.BindPFlag("audit.redis-db", ServeCmd.Flags().Lookup("redis-db"))
	viper.BindPFlag("audit.pcap-file", ServeCmd.Flags().Lookup("pcap-file"))
	viper.BindPFlag("api.listen", ServeCmd.Flags().Lookup("api-listen"))
}

// loadConfig resolves the switch configuration (flags override config file)
func loadConfig() (switchd.Config, error) {
	frameSize, err := cmdutil.GetSizeConfig("switch.max-frame-size", maxFrameSize)
	if err != nil {
		return switchd.Config{}, err
	}

	return switchd.Config{
		ListenAddr:        cmdutil.GetStringConfig("switch.listen", listenAddr),
		MaxSessions:       cmdutil.GetIntConfig("switch.max-sessions", maxSessions),
		HeaderLength:      cmdutil.GetIntConfig("switch.header-length", headerLength),
		Framing:           cmdutil.GetStringConfig("switch.framing", framing),
		MaxFrameSize:      int(frameSize),
		ApprovalCeiling:   cmdutil.GetInt64Config("switch.approval-ceiling", approvalCeiling),
		ProcessingTimeout: cmdutil.GetDurationConfig("switch.processing-timeout", processingTimeout),
		IdleTimeout:       cmdutil.GetDurationConfig("switch.idle-timeout", idleTimeout),
		WriteTimeout:      cmdutil.GetDurationConfig("switch.write-timeout", writeTimeout),
		DictionaryPath:    cmdutil.GetStringConfig("switch.dictionary", dictionaryPath),
		HealthListenAddr:  cmdutil.GetStringConfig("switch.health-listen", healthListen),
		StatsInterval:     cmdutil.GetDurationConfig("switch.stats-interval", statsInterval),
		TLSEnabled:        cmdutil.GetBoolConfig("switch.tls", tlsEnabled),
		TLS: tlsutil.ServerConfig{
			CertFile:   cmdutil.GetStringConfig("switch.tls-cert", tlsCertFile),
			KeyFile:    cmdutil.GetStringConfig("switch.tls-key", tlsKeyFile),
			CAFile:     cmdutil.GetStringConfig("switch.tls-ca", tlsCAFile),
			ClientAuth: cmdutil.GetBoolConfig("switch.tls-client-auth", tlsClientAuth),
		},
		Audit: switchd.AuditConfig{
			QueueSize:      cmdutil.GetIntConfig("audit.queue-size", auditQueueSize),
			MemoryCapacity: cmdutil.GetIntConfig("audit.memory-capacity", memoryCapacity),
			PostgresDSN:    cmdutil.GetStringConfig("audit.postgres-dsn", postgresDSN),
			RedisAddr:      cmdutil.GetStringConfig("audit.redis-addr", redisAddr),
			RedisPassword:  cmdutil.GetStringConfig("audit.redis-password", redisPassword),
			RedisDB:        cmdutil.GetIntConfig("audit.redis-db", redisDB),
			PcapFile:       cmdutil.GetStringConfig("audit.pcap-file", pcapFile),
		},
		APIListenAddr: cmdutil.GetStringConfig("api.listen", apiListen),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting paycat switch")

	config, err := loadConfig()
	if err != nil {
		return err
	}

	if !config.TLSEnabled {
		logger.Warn("TLS disabled: terminal traffic is unencrypted",
			"enable", "--tls --tls-cert=server.crt --tls-key=server.key")
	}

	logger.Info("Switch configuration",
		"listen", config.ListenAddr,
		"max_sessions", config.MaxSessions,
		"framing", config.Framing,
		"header_length", config.HeaderLength,
		"approval_ceiling", config.ApprovalCeiling,
		"postgres", config.Audit.PostgresDSN != "",
		"redis", config.Audit.RedisAddr != "",
		"pcap_file", config.Audit.PcapFile,
		"api", config.APIListenAddr)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	cleanup := signals.SetupHandler(ctx, cancel)
	defer cleanup()

	sw, err := switchd.New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create switch: %w", err)
	}
	if err := sw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start switch: %w", err)
	}

	logger.Info("Switch started successfully", "listen", sw.Addr().String())
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*constants.GracefulShutdownTimeout)
	defer shutdownCancel()
	if err := sw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Switch shutdown incomplete", "error", err)
		return err
	}

	logger.Info("Switch stopped")
	return nil
}
