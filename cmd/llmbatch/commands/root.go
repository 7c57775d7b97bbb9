// Package commands implements the CLI commands for llmbatch.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "llmbatch",
	Short: "Batch client for chat-completion APIs",
	Long: `llmbatch sends a directory of texts through a chat-completion API
such as OpenAI's, one request per text, with bounded concurrency and
server-driven rate limiting. Results come back in input order.

Examples:
  # Process every *.txt file under ./inputs with gpt-4o-mini
  llmbatch run -m gpt-4o-mini -i inputs

  # Add a system prompt and cap the completion length
  llmbatch run -m gpt-4o-mini -p "Be terse." --max-tokens 256

  # List the models the endpoint offers
  llmbatch models`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.llmbatch.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	rootCmd.PersistentFlags().String("endpoint", "https://api.openai.com/v1/", "base URL of the API, ending in /")
	rootCmd.PersistentFlags().StringP("api-key", "k", "", "API key (or use OPENAI_API_KEY)")
	rootCmd.PersistentFlags().String("org", "", "value for the OpenAI-Organization header")
	rootCmd.PersistentFlags().String("proj", "", "value for the OpenAI-Project header")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
	_ = viper.BindPFlag("proj", rootCmd.PersistentFlags().Lookup("proj"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".llmbatch")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("LLMBATCH")
	viper.AutomaticEnv()

	_ = viper.BindEnv("api_key", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// extraHeaders builds the literal header lines shared by every request.
func extraHeaders() []string {
	var headers []string
	if org := viper.GetString("org"); org != "" {
		headers = append(headers, "OpenAI-Organization: "+org)
	}
	if proj := viper.GetString("proj"); proj != "" {
		headers = append(headers, "OpenAI-Project: "+proj)
	}
	return headers
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
