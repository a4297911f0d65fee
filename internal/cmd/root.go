package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   string
	BuildTime string
	cfgFile   string
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Content moderation API server",
	Long: `Aegis is a content moderation service with API key management,
anonymous access tokens, per-plan quotas, and webhook notifications.`,
	RunE: runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().String("mode", "release", "server mode (debug/release/test)")
	rootCmd.Flags().String("db", "", "sqlite database path")

	viper.BindPFlag("server.host", rootCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", rootCmd.Flags().Lookup("mode"))
	viper.BindPFlag("database.path", rootCmd.Flags().Lookup("db"))
}

func initConfig() {
	// .env is optional; real environments set variables directly.
	godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./data")
		viper.AddConfigPath("$HOME/.aegis")
	}

	viper.SetEnvPrefix("AEGIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file missing: LoadOrCreate writes one on startup.
		if cfgFile == "" {
			viper.SetConfigFile("./config.yaml")
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
