package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"kubegems.io/trackx/cmd/trackx/server"
	"kubegems.io/trackx/pkg/storage"
	"kubegems.io/trackx/pkg/tracker"
	"kubegems.io/trackx/pkg/version"
)

const (
	TrackxServerEnv = "TRACKX_SERVER"
	TrackxAuthEnv   = "TRACKX_AUTH"
)

type GlobalOptions struct {
	Server   string
	CacheDir string
	S3       *storage.S3Options
}

func DefaultGlobalOptions() *GlobalOptions {
	cachedir := ".trackx-cache"
	if home, err := os.UserHomeDir(); err == nil {
		cachedir = filepath.Join(home, ".trackx", "cache")
	}
	return &GlobalOptions{
		Server:   os.Getenv(TrackxServerEnv),
		CacheDir: cachedir,
		S3:       storage.NewDefaultS3Options(),
	}
}

func NewTrackxCmd() *cobra.Command {
	options := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:     "trackx",
		Short:   "trackx experiment tracking toolkit",
		Version: version.Get().String(),
	}
	cmd.AddCommand(NewServingCmd())
	cmd.AddCommand(NewTaskCmd(options))
	cmd.AddCommand(NewDatasetCmd(options))
	cmd.AddCommand(NewStorageCmd(options))
	cmd.AddCommand(server.NewServerCmd())

	flags := cmd.PersistentFlags()
	flags.StringVar(&options.Server, "server", options.Server, "tracking server name or url")
	flags.StringVar(&options.CacheDir, "cache-dir", options.CacheDir, "local cache directory")
	flags.StringVar(&options.S3.URL, "s3-url", options.S3.URL, "s3 endpoint url")
	flags.StringVar(&options.S3.Region, "s3-region", options.S3.Region, "s3 region")
	flags.StringVar(&options.S3.AccessKey, "s3-access-key", options.S3.AccessKey, "s3 access key")
	flags.StringVar(&options.S3.SecretKey, "s3-secret-key", options.S3.SecretKey, "s3 secret key")
	flags.BoolVar(&options.S3.PathStyle, "s3-path-style", options.S3.PathStyle, "s3 path style addressing")
	return cmd
}

func BaseContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	if os.Getenv("DEBUG") == "1" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		stdr.SetVerbosity(1)
		ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
	}
	return ctx, cancel
}

// Client resolves the tracking server from a url, a stored name or the current server.
// TRACKX_AUTH, when set, is sent as the Authorization header.
func (o *GlobalOptions) Client() (*tracker.Client, error) {
	return server.DefaultServerManager.Resolve(o.Server, os.Getenv(TrackxAuthEnv))
}
