package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/obiente/translate/goscore/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	cobra.CheckErr(newRootCmd().Execute())
}

// app carries the configuration shared by every command.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "goscore",
		Short: "Transcribe monophonic recordings into notes",
		Long: `goscore detects the pitch of a monophonic recording with the McLeod
Pitch Method and segments it into named notes (C5, E5, G5, ...).

Configuration is read from flags, GOSCORE_* environment variables and an
optional goscore.yaml file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is ./goscore.yaml, $HOME/.config/goscore/goscore.yaml or /etc/goscore/goscore.yaml)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json, console)")
	bindKey(pf, "log-level", "log_level")
	bindKey(pf, "log-format", "log_format")

	root.AddCommand(newTranscribeCmd(a), newServeCmd(a), newToneCmd())
	return root
}

// init loads configuration once flags are parsed and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	if err := bindFlags(cmd, a.v); err != nil {
		return err
	}
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	setupLogging(cfg, cmd.ErrOrStderr())
	if used := a.v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("using config file")
	}
	return nil
}

func setupLogging(cfg config.Config, stderr io.Writer) {
	lvl := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		lvl = l
	}
	if cfg.LogFormat == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(stderr).With().Timestamp().Logger()
	}
	log.Logger = log.Level(lvl)
}

const viperKey = "viper_key"

// bindKey records the configuration key a flag feeds.
func bindKey(fs *pflag.FlagSet, flag, key string) {
	_ = fs.SetAnnotation(flag, viperKey, []string{key})
}

// bindFlags binds the executing command's annotated flags to their keys.
// Binding happens per run because transcribe and serve share keys.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKey]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			lastErr = err
		}
	})
	return lastErr
}
