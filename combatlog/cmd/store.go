package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob/filestore"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob/s3store"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/common/config"
)

// newObjectStore opens the configured report store.
func newObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (blob.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	case "file", "":
		return filestore.New(cfg.BasePath)
	}
	return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
}

// addStoreFlags registers the flags read by storeFlags.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "file", "report store: file or s3")
	cmd.Flags().String("out", "reports", "root directory of the file store")
	cmd.Flags().String("bucket", "", "bucket to publish to (default from cli.yaml)")
	cmd.Flags().String("region", "us-east-1", "S3 region")
	cmd.Flags().String("endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().Bool("path-style", false, "use path-style S3 addressing")
}

func storeFlags(cmd *cobra.Command) (config.ObjectStoreConfig, string) {
	backend, _ := cmd.Flags().GetString("store")
	out, _ := cmd.Flags().GetString("out")
	region, _ := cmd.Flags().GetString("region")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	pathStyle, _ := cmd.Flags().GetBool("path-style")
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket == "" {
		bucket = cli().Bucket
	}
	return config.ObjectStoreConfig{
		Backend:      backend,
		Region:       region,
		Endpoint:     endpoint,
		BasePath:     out,
		UsePathStyle: pathStyle,
	}, bucket
}

func storedTable(stored []blob.StoredReport) func() *output.Table {
	return func() *output.Table {
		table := output.NewTable("REPORT", "CANONICAL", "SIZE", "KEY")
		for _, s := range stored {
			table.AddRow(s.KeyName, strconv.Itoa(s.CanonicalType), strconv.FormatInt(s.Size, 10), s.ObjectKey)
		}
		return table
	}
}
