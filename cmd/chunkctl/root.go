package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/factory"
	"github.com/DanikLP1/s3-chunk-storage/internal/logging"
	"github.com/DanikLP1/s3-chunk-storage/internal/s3chunk"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
	store   *s3chunk.Storage
}

// storage opens the configured chunk storage on first use.
func (a *app) storage(ctx context.Context) (*s3chunk.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := factory.New(ctx, a.cfg, factory.Options{Logger: a.logger})
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chunkctl",
		Short:         "Inspect and manage chunks kept in an object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Config{
				Level:  cfg.Log.Level,
				JSON:   cfg.Log.JSON,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, toml or json); CHUNKSTORE_* env vars override it")

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newInfoCmd(a),
		newExistsCmd(a),
		newRmCmd(a),
		newConcatCmd(a),
		newSealCmd(a, true),
		newSealCmd(a, false),
		newGCCmd(a),
	)
	return root
}
