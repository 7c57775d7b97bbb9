package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crawlserv/llmbatch/internal/logger"
	"github.com/crawlserv/llmbatch/pkg/batch"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the endpoint offers",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := batch.NewClient(ctx, viper.GetString("endpoint"), viper.GetString("api_key"), extraHeaders())
	if err != nil {
		logError("%v", err)
		return err
	}

	for i, model := range client.ListModels() {
		fmt.Printf("[%d] %s\n", i+1, model)
	}

	return nil
}
