package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"modelcore/internal/blob"
	"modelcore/internal/core"
	"modelcore/internal/document"
	"modelcore/pkg/domain"
)

// errViolations marks a check that found blocking rule violations.
var errViolations = errors.New("model has blocking violations")

type rootOptions struct {
	configPath string
	verbose    bool
	blobDriver string
	blobRoot   string
	metrics    string
	trace      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Inspect, export and import engineering models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (MODELCORE_* env vars override it)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every operation to stderr")
	flags.StringVar(&opts.blobDriver, "blob-driver", "", "blob backend: fs|s3|memory (default from MODELCORE_BLOB_DRIVER)")
	flags.StringVar(&opts.blobRoot, "blob-root", "", "blob directory for the fs driver")
	flags.StringVar(&opts.metrics, "metrics", "", "print operation metrics to stderr on exit: expvar|prometheus")
	flags.StringVar(&opts.trace, "trace", "", "print a span per operation to stderr: json|otel")

	root.AddCommand(
		newCheckCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newRevisionsCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) openService(cmd *cobra.Command, extra ...core.ServiceOption) (*core.Service, core.Config, error) {
	cfg, err := core.LoadConfig(o.configPath)
	if err != nil {
		return nil, core.Config{}, err
	}
	opts := append([]core.ServiceOption{core.WithLogger(o.logger(cmd))}, extra...)
	svc, err := core.NewServiceFromConfig(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, core.Config{}, err
	}
	return svc, cfg, nil
}

func (o *rootOptions) openBlob(ctx context.Context) (blob.Store, error) {
	cfg, err := blob.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if o.blobDriver != "" {
		cfg.Driver = blob.Driver(o.blobDriver)
	}
	if o.blobRoot != "" {
		cfg.FSRoot = o.blobRoot
	}
	if cfg.Driver == blob.DriverS3 && cfg.S3.Bucket == "" {
		if cfg.S3, err = blob.S3ConfigFromEnv(); err != nil {
			return nil, err
		}
	}
	return blob.Open(ctx, cfg)
}

// withService opens the configured service, runs fn and closes it. Metrics
// and spans requested on the command line are written after the close.
func (o *rootOptions) withService(cmd *cobra.Command, fn func(*core.Service, core.Config) error) (err error) {
	tel, err := o.telemetry(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	svc, cfg, err := o.openService(cmd, tel.options...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if ferr := tel.flush(cmd.Context()); ferr != nil && err == nil {
			err = ferr
		}
	}()
	return fn(svc, cfg)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify referential integrity and multiplicity bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(svc *core.Service, _ core.Config) error {
				out := cmd.OutOrStdout()
				if err := svc.Snapshot().Validate(); err != nil {
					return fmt.Errorf("integrity: %w", err)
				}
				res, err := svc.Check(cmd.Context())
				if err != nil {
					return err
				}
				printViolations(out, res.Violations)
				if res.HasBlocking() {
					return errViolations
				}
				_, _ = fmt.Fprintln(out, "ok")
				return nil
			})
		},
	}
}

func printViolations(w io.Writer, violations []domain.Violation) {
	for _, v := range violations {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n", v.Severity, v.Rule, v.Entity, v.EntityID, v.Message)
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print collection sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(svc *core.Service, cfg core.Config) error {
				stats := svc.Store().Stats()
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}
				_, err := fmt.Fprintf(out, "driver=%s elements=%d relationships=%d diagrams=%d links=%d\n",
					cfg.Storage.Driver, stats.Elements, stats.Relationships, stats.Diagrams, stats.Links)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var name string
	var linkTTL time.Duration
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the current model as a new project revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(svc *core.Service, cfg core.Config) error {
				rev, err := document.Save(cmd.Context(), store, name, svc.Snapshot(), document.WithAuthor(cfg.Author))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "saved %s (%d bytes)\n", rev.Key, rev.Size)
				if linkTTL > 0 {
					url, err := document.Link(cmd.Context(), store, rev, linkTTL)
					if err != nil {
						return fmt.Errorf("link: %w", err)
					}
					_, _ = fmt.Fprintln(out, url)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().DurationVar(&linkTTL, "link", 0, "also print a download URL valid for this long")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var name, key string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the model with a saved project revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := opts.openBlob(ctx)
			if err != nil {
				return err
			}
			var snap domain.Snapshot
			if key != "" {
				snap, err = document.LoadRevision(ctx, store, key)
			} else {
				var rev document.Revision
				snap, rev, err = document.Load(ctx, store, name)
				key = rev.Key
			}
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(svc *core.Service, _ core.Config) error {
				if err := svc.LoadSnapshot(ctx, snap); err != nil {
					return err
				}
				stats := svc.Store().Stats()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d elements, %d relationships, %d diagrams\n",
					key, stats.Elements, stats.Relationships, stats.Diagrams)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name (newest revision)")
	cmd.Flags().StringVar(&key, "revision", "", "exact revision key instead of the newest")
	cmd.MarkFlagsOneRequired("name", "revision")
	return cmd
}

func newRevisionsCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "revisions",
		Short: "List saved revisions of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			revs, err := document.Revisions(cmd.Context(), store, name)
			if err != nil {
				return err
			}
			for _, rev := range revs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", rev.SavedAt.Format(time.RFC3339), rev.Key, rev.Size)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
