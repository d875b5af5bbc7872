// Package server initializes and runs the file service: it wires the
// database, object-store and queue clients, starts the HTTP API, the
// completion consumer and the retention sweeper, and handles graceful
// shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/s3x"
	"github.com/catforu/filestore/internal/server/config"
	"github.com/catforu/filestore/internal/server/consumer"
	"github.com/catforu/filestore/internal/server/httpapi"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
	"github.com/catforu/filestore/internal/server/services"
	"github.com/catforu/filestore/internal/server/shared/db"
	"github.com/catforu/filestore/internal/server/sweeper"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	httpSrv  *httpapi.Server
	consumer *consumer.Consumer
	sweeper  *sweeper.Sweeper

	// RefCounts is the surface the board subsystem calls when it writes
	// documents: ApplyDelta inside the document transaction,
	// ResolveDisplayURLs on reads.
	RefCounts *services.RefCountService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewDefault()

	pool, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	s3Client, err := s3x.NewClient(ctx, s3x.Config{
		Region:    cfg.S3Region,
		AccessKey: cfg.S3RootUser,
		SecretKey: cfg.S3RootPassword,
		Endpoint:  cfg.S3BaseEndpoint,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser, cfg.S3RootPassword, "")))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	uploads := services.NewUploadService(pool, repos, s3Client, cfg.UploadURLValidity, logger)
	refCounts := services.NewRefCountService(repos, cfg.S3PublicURL, logger)

	return &App{
		config:    cfg,
		logger:    logger,
		httpSrv:   httpapi.NewServer(cfg.EndpointAddrHTTP, uploads, cfg.SecretKey, logger),
		consumer:  consumer.NewConsumer(pool, repos, sqsClient, cfg.SQSQueueURL, logger),
		sweeper:   sweeper.NewSweeper(pool, repos, cfg.S3PublicURL, cfg.PurgeGracePeriod, cfg.SweepInterval, logger),
		RefCounts: refCounts,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting file service...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpSrv.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.consumer.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	wg.Wait()
}
