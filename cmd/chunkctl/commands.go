package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/factory"
)

const readBlock = 1 << 20

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put NAME [FILE]",
		Short: "Create a chunk from FILE, or stdin when FILE is - or missing",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data   io.Reader
				length int64
			)
			if len(args) == 1 || args[1] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				data, length = bytes.NewReader(b), int64(len(b))
			} else {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				st, err := f.Stat()
				if err != nil {
					return err
				}
				data, length = f, st.Size()
			}

			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := s.CreateWithContent(cmd.Context(), args[0], length, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], length)
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var offset, length int64
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Write a chunk's bytes to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.storage(ctx)
			if err != nil {
				return err
			}
			h, err := s.OpenRead(ctx, args[0])
			if err != nil {
				return err
			}
			info, err := s.Info(ctx, args[0])
			if err != nil {
				return err
			}
			end := info.Length
			if length >= 0 {
				end = min(end, offset+length)
			}

			buf := make([]byte, readBlock)
			out := cmd.OutOrStdout()
			for pos := offset; pos < end; {
				n, err := s.Read(ctx, h, pos, int(min(int64(len(buf)), end-pos)), buf, 0)
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
				if _, err := out.Write(buf[:n]); err != nil {
					return err
				}
				pos += int64(n)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "first byte to read")
	cmd.Flags().Int64Var(&length, "length", -1, "bytes to read; -1 reads to the end")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Print a chunk's length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			info, err := s.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", info.Name, info.Length)
			return nil
		},
	}
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists NAME",
		Short: "Print true when the chunk exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := s.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME...",
		Short: "Delete chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := s.Delete(cmd.Context(), chunk.WriteHandle(name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConcatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "concat TARGET SOURCE...",
		Short: "Append whole SOURCE chunks to TARGET",
		Long: `Append whole SOURCE chunks to TARGET in one multipart copy. No SOURCE
may be longer than TARGET is when the copy starts.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.storage(ctx)
			if err != nil {
				return err
			}
			if !s.Capabilities().Concat {
				return fmt.Errorf("backend %s cannot concatenate: %w", a.cfg.Backend, errors.ErrUnsupported)
			}

			concatArgs := make([]chunk.ConcatArgument, 0, len(args))
			for _, name := range args {
				info, err := s.Info(ctx, name)
				if err != nil {
					return err
				}
				concatArgs = append(concatArgs, chunk.ConcatArgument{Name: name, Length: info.Length})
			}
			n, err := s.Concat(ctx, concatArgs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], n)
			return nil
		},
	}
}

func newSealCmd(a *app, readOnly bool) *cobra.Command {
	use, short := "unseal NAME", "Grant anonymous full control again"
	if readOnly {
		use, short = "seal NAME", "Restrict anonymous access to reads"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			h, err := s.OpenWrite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.SetReadOnly(cmd.Context(), h, readOnly)
		},
	}
}

func newGCCmd(a *app) *cobra.Command {
	var minAge time.Duration
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Reclaim unreferenced blobs of the local backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Backend != config.BackendLocal {
				return fmt.Errorf("gc needs the %s backend, configured: %s", config.BackendLocal, a.cfg.Backend)
			}
			store, err := factory.OpenLocal(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.CollectGarbage(cmd.Context(), a.cfg.Local.GCBatch, minAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted\t%d\nfreed_bytes\t%d\n", stats.Deleted, stats.FreedBytes)
			return nil
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", time.Minute, "only reclaim blobs older than this")
	return cmd
}
