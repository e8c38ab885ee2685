package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hb-chen/flowdesign/internal/config"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

var (
	cfgFile, logLevel, logPath string
	stderr, debug              bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowdesign",
	Short: "Graph key-table synchronization and validation engine for agent pipelines",
	Long: `flowdesign keeps the key table, input bindings, branch edges and
validation results of an agent pipeline graph consistent while it is edited.
It serves the editing session over HTTP and gRPC and can lint graph files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle (initConfig refers to rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Initialize logger first
		if err := initLogger(logPath, logLevel, debug, stderr); err != nil {
			return err
		}

		// Initialize config
		initConfig()

		logger.Debugf("Starting flowdesign %s...", cmd.Name())
		return nil
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&stderr, "stderr", "e", false, "log to stderr")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR, FATAL, PANIC")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "./log", "log file path")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.Init()

	if cfgFile != "" {
		// Use config file from the flag.
		config.Viper().SetConfigFile(cfgFile)
	} else {
		// Search config in current directory and configs directory
		config.Viper().AddConfigPath(".")
		config.Viper().AddConfigPath("./configs")
		config.Viper().SetConfigType("yaml")
		config.Viper().SetConfigName("config")
	}

	// Bind flags to viper
	_ = config.Viper().BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = config.Viper().BindPFlag("log.path", rootCmd.PersistentFlags().Lookup("log-path"))
	_ = config.Viper().BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))

	config.Viper().SetEnvPrefix("FLOWDESIGN")
	config.Viper().SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.Viper().AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.Viper().ReadInConfig(); err != nil {
		logger.Warnf("Config file not found: %v", err)
	} else {
		logger.Infof("Using config file: %s", config.Viper().ConfigFileUsed())
	}
}

const logCallerSkip = 1

func initLogger(path, level string, debug, e bool) error {
	writer := getLogWriter(path)
	if e {
		stderrWriter, _, err := zap.Open("stderr")
		if err != nil {
			return err
		}
		writer = stderrWriter
	}

	// Parse log level
	logLevel := zapcore.InfoLevel
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	// Create encoder
	encoder := getLogEncoder(debug, e)

	// Create core
	core := zapcore.NewCore(encoder, writer, logLevel)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(logCallerSkip))

	// Replace global logger
	logger.ReplaceLogger(zapLogger)

	return nil
}

func getLogEncoder(debug, e bool) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if debug && e {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeCaller = zapcore.FullCallerEncoder
	}

	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getLogWriter(path string) zapcore.WriteSyncer {
	path = strings.TrimRight(path, "/")
	lumberJackLogger := &lumberjack.Logger{
		Filename:   path + "/flowdesign.log",
		MaxSize:    10,   // megabytes
		MaxBackups: 10,   // number of backups
		MaxAge:     30,   // days
		Compress:   true, // compress old files
	}
	return zapcore.AddSync(lumberJackLogger)
}
