package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/endorses/paycat/cmd/send"
	"github.com/endorses/paycat/cmd/serve"
	"github.com/endorses/paycat/cmd/status"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "paycat",
	Short: "paycat switches AS2805 transactions",
	Long: fmt.Sprintf(`paycat %s - AS2805 financial transaction switch

paycat accepts terminal connections over TCP, decodes AS2805 messages,
authorizes or declines them and mirrors every exchange to an audit trail.`, version.Version),
	Version:           version.GetFullVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: applyLogLevel,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalattes() {
	rootCmd.AddCommand(serve.ServeCmd)
	rootCmd.AddCommand(send.SendCmd)
	rootCmd.AddCommand(status.StatusCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Initialize structured logging
	logger.Initialize()

	addSubCommandPalattes()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/paycat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func applyLogLevel(cmd *cobra.Command, args []string) error {
	l, err := logger.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	logger.SetLevel(l)
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// ~/.config/paycat/config.yaml, then ~/.paycat.yaml
		viper.AddConfigPath(home + "/.config/paycat")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			viper.SetConfigName(".paycat")
		}
	}

	viper.SetEnvPrefix("PAYCAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		cobra.CheckErr(fmt.Errorf("failed to read config file %s: %w", cfgFile, err))
	}
}
