// Command data-relay pipes one mail message through a DATA transaction into
// a configured sink: stdout, an AWS SES relay or a discarding sink.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/transform"

	"github.com/xyster000/FirstSMTP"
	"github.com/xyster000/FirstSMTP/config"
	"github.com/xyster000/FirstSMTP/sink"
	"github.com/xyster000/FirstSMTP/smtputil"
)

var (
	cfgFile  string
	rawInput bool
)

var rootCmd = &cobra.Command{
	Use:   "data-relay [message file]",
	Short: "Relay a mail message through the DATA processing engine",
	Long: `data-relay reads one mail message (from a file or stdin), runs it through
the DATA transaction engine (boundary detection, transparency codec, optional
banner insertion) and forwards the wire-format result to the configured sink.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&rawInput, "raw", false, "Input is a bare message, not wire-format DATA; stuff dots before feeding it")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	c := zap.NewProductionConfig()
	c.Level = lvl
	return c.Build()
}

func buildSink(ctx context.Context, cfg *config.Config, log *zap.Logger) (smtpdata.Sink, error) {
	switch strings.ToLower(cfg.Sink.Type) {
	case config.SinkStdout:
		return sink.NewWriter(os.Stdout), nil
	case config.SinkDiscard:
		return sink.Discard{}, nil
	case config.SinkSES:
		return sink.NewSESRelay(ctx, sink.SESConfig{
			Region:          cfg.Sink.SES.Region,
			AccessKeyID:     cfg.Sink.SES.AccessKeyID,
			SecretAccessKey: cfg.Sink.SES.SecretAccessKey,
			Sender:          cfg.Sink.SES.Sender,
			MaxMemory:       cfg.SpoolMaxMemory,
		}, log)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	if rawInput {
		in = transform.NewReader(in, transform.Chain(
			&smtputil.CrLfCanonicalizationTransformer{},
			&smtputil.DotStuffingTransformer{},
		))
	}

	s, err := buildSink(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	trx := smtpdata.New(s,
		smtpdata.WithMaxHeaderLines(cfg.MaxHeaderLines),
		smtpdata.WithEncoding(cfg.Encoding),
		smtpdata.WithLogger(log),
	)
	if cfg.Banner.Text != "" {
		trx.SetBanner(cfg.Banner.Text, cfg.Banner.HTML)
	}

	scanner := smtputil.GetLineScanner(in)
	defer scanner.Close()
	for scanner.Scan() {
		if err := trx.AddData(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	trx.EndData(func(err error) { done <- err })
	if err := <-done; err != nil {
		return err
	}
	log.Info("message relayed",
		zap.String("transaction", trx.ID()),
		zap.Int64("bytes", trx.DataBytes()),
		zap.Int("mimeParts", trx.MimePartCount()))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
