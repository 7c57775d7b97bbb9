package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crawlserv/llmbatch/internal/logger"
	"github.com/crawlserv/llmbatch/internal/output"
	"github.com/crawlserv/llmbatch/pkg/batch"
)

// runConfig collects everything the run command needs, resolved from
// flags, config file and environment.
type runConfig struct {
	Endpoint           string  `validate:"required,url"`
	APIKey             string  `validate:"required"`
	Model              string  `validate:"required"`
	Prompt             string
	MaxTokens          int     `validate:"min=0"`
	Workers            int     `validate:"min=0"`
	TokensPerCharacter float64 `validate:"gt=0"`
	InputsDir          string  `validate:"required,dir"`
	Format             string  `validate:"oneof=json jsonl yaml"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send every input text through the selected model",
	Long: `Run reads every *.txt file in the inputs directory, sends each one as
a chat-completion request and writes the results in input order.

Examples:
  llmbatch run -m gpt-4o-mini
  llmbatch run -m gpt-4o-mini -i ./texts -o results.json
  llmbatch run -m gpt-4o-mini -p "Summarize in one sentence." --format yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()

	flags.StringP("model", "m", "", "model to use (see 'llmbatch models')")
	flags.StringP("prompt", "p", "", "system prompt sent with every input")
	flags.Int("max-tokens", 0, "maximum completion tokens per request (0=unlimited)")
	flags.IntP("workers", "w", 0, "concurrent requests (0=one per CPU)")
	flags.Float64("tokens-per-char", batch.DefaultTokensPerCharacter, "ratio for estimating token counts from text length")

	flags.StringP("inputs", "i", "inputs", "directory of *.txt files, one request each")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("prompt", flags.Lookup("prompt"))
	_ = viper.BindPFlag("max_tokens", flags.Lookup("max-tokens"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("tokens_per_char", flags.Lookup("tokens-per-char"))
}

func runRun(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inputsDir, _ := cmd.Flags().GetString("inputs")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	cfg := runConfig{
		Endpoint:           viper.GetString("endpoint"),
		APIKey:             viper.GetString("api_key"),
		Model:              viper.GetString("model"),
		Prompt:             viper.GetString("prompt"),
		MaxTokens:          viper.GetInt("max_tokens"),
		Workers:            viper.GetInt("workers"),
		TokensPerCharacter: viper.GetFloat64("tokens_per_char"),
		InputsDir:          inputsDir,
		Format:             format,
	}

	if err := validator.New().Struct(cfg); err != nil {
		logError("invalid configuration: %v", err)
		return err
	}

	files, texts, err := readInputs(cfg.InputsDir)
	if err != nil {
		logError("reading inputs: %v", err)
		return err
	}
	if len(texts) == 0 {
		logError("no *.txt files in %s", cfg.InputsDir)
		return fmt.Errorf("no inputs")
	}

	var total int
	for _, t := range texts {
		total += len(t)
	}
	logger.Info("inputs collected", "files", len(texts), "size", humanize.Bytes(uint64(total)))

	client, err := batch.NewClient(ctx, cfg.Endpoint, cfg.APIKey, extraHeaders())
	if err != nil {
		logError("%v", err)
		return err
	}

	if err := client.SetModel(cfg.Model); err != nil {
		logError("%v", err)
		return err
	}
	if err := client.SetPrompt(cfg.Prompt); err != nil {
		return err
	}
	if err := client.SetMaxTokens(cfg.MaxTokens); err != nil {
		return err
	}
	if err := client.SetMaxWorkers(cfg.Workers); err != nil {
		return err
	}
	client.SetTokensPerCharacter(cfg.TokensPerCharacter)

	if !viper.GetBool("quiet") {
		client.SetProgressCallback(renderProgress)
	}

	client.AddTexts(texts)

	err = client.Run(ctx)
	if !viper.GetBool("quiet") {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		logError("run failed: %v", err)
		return err
	}

	results := client.Results()
	client.Free()

	return writeResults(outputPath, output.Format(cfg.Format), files, results)
}

// readInputs collects the contents of every *.txt file in dir, sorted by
// file name.
func readInputs(dir string) (files []string, texts []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, nil, err
		}

		files = append(files, entry.Name())
		texts = append(texts, strings.TrimRight(string(content), "\n"))
	}

	return files, texts, nil
}

// renderProgress rewrites a percentage line on stderr. Workers may
// signal progress concurrently, so the line is guarded by a mutex.
var progressMu sync.Mutex

func renderProgress(value float64) {
	progressMu.Lock()
	defer progressMu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%5.1f%%", value*100)
}

// writeResults serialises the results to path, or stdout when path is
// empty.
func writeResults(path string, format output.Format, files, results []string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	for i, result := range results {
		rec := output.Record{Index: i + 1, Result: result}
		if i < len(files) {
			rec.File = files[i]
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	return w.Flush()
}
