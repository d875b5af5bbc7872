// Package consumer drains upload-completion notifications from the queue
// and reconciles them into the session store and file registry.
package consumer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sethvargo/go-retry"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/s3x"
	"github.com/catforu/filestore/internal/server/models"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
)

const (
	// longPollWait bounds every receive call so the loop stays
	// interruptible between polls.
	longPollWait = 20 * time.Second

	// receiveErrorPause keeps a broken queue from turning the loop into a
	// tight retry spin.
	receiveErrorPause = 5 * time.Second

	maxReceiveRetries = 3
)

// SQSAPI is the slice of the SQS client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// notificationEnvelope mirrors the S3 event notification shape. A body that
// does not decode yields zero records, never a crash.
type notificationEnvelope struct {
	Records []notificationRecord `json:"Records"`
}

type notificationRecord struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Consumer is the single logical completion worker. Messages are processed
// one at a time, which serializes reconciliation per content hash; the
// registry upsert is additionally idempotent, so duplicates and reordering
// are absorbed either way.
type Consumer struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	sqs      SQSAPI
	queueURL string
	logger   logging.Logger
}

func NewConsumer(db *sql.DB, repos repomanager.RepositoryManager, sqsClient SQSAPI, queueURL string, logger logging.Logger) *Consumer {
	return &Consumer{
		db:       db,
		repos:    repos,
		sqs:      sqsClient,
		queueURL: queueURL,
		logger:   logger.With("module", "sqs_consumer"),
	}
}

// Run long-polls the queue until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.queueURL == "" {
		c.logger.Warn(ctx, "no queue URL configured, completion consumer disabled")
		return nil
	}

	c.logger.Info(ctx, "completion consumer started", "queue", c.queueURL)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := c.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error(ctx, "receive failed, pausing", "error", err.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(receiveErrorPause):
			}
			continue
		}

		for _, msg := range messages {
			if err := c.handleMessage(ctx, msg); err != nil {
				// Not acknowledged: the queue redelivers and the
				// idempotent reconcile makes the re-run safe.
				c.logger.Error(ctx, "message processing failed, leaving for redelivery", "error", err.Error())
			}
		}
	}
}

// receive wraps the long-poll call in a bounded exponential backoff so a
// transient queue error does not surface immediately.
func (c *Consumer) receive(ctx context.Context) ([]types.Message, error) {
	var out *sqs.ReceiveMessageOutput

	backoff := retry.WithMaxRetries(maxReceiveRetries, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		o, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     int32(longPollWait / time.Second),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// handleMessage reconciles every record of one notification and deletes the
// message only after all of them committed. Malformed envelopes and keys are
// treated as permanently processed.
func (c *Consumer) handleMessage(ctx context.Context, msg types.Message) error {
	var envelope notificationEnvelope
	if msg.Body != nil {
		if err := json.Unmarshal([]byte(*msg.Body), &envelope); err != nil {
			c.logger.Warn(ctx, "malformed notification body, discarding", "error", err.Error())
		}
	}

	for _, record := range envelope.Records {
		key := record.S3.Object.Key
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}

		hash, ext, ok := s3x.HashFromKey(key)
		if !ok {
			// Cannot belong to any session; keep going so the message
			// does not redeliver forever.
			c.logger.Warn(ctx, "notification key does not decode to a content hash, skipping", "key", key)
			continue
		}

		if err := c.reconcile(ctx, hash, ext, key); err != nil {
			return fmt.Errorf("reconcile %s: %w", key, err)
		}
	}

	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// reconcile runs the whole session-lookup / registry-upsert / batch-complete
// sequence in one transaction, so a crash mid-way leaves no half state.
func (c *Consumer) reconcile(ctx context.Context, hash, ext, key string) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessions := c.repos.UploadSessions(tx)
		registry := c.repos.Files(tx)

		session, err := sessions.GetLatestByHash(ctx, hash)
		if errors.Is(err, common.ErrorNotFound) {
			// Dedup already resolved this content, or this is a stray
			// duplicate. Nothing to do.
			c.logger.Info(ctx, "no session for completed upload, skipping", "hash", hash, "key", key)
			return nil
		}
		if err != nil {
			return err
		}

		optimized := s3x.IsOptimizedKey(key)
		status := models.FileStatusUploaded
		if optimized {
			status = models.FileStatusOptimized
		}

		fileID, err := registry.Upsert(ctx, &models.File{
			ContentHash:  hash,
			OriginalName: session.OriginalName,
			Extension:    ext,
			Size:         session.Size,
			S3Key:        key,
			Status:       status,
			NeedOptimize: !optimized,
		})
		if err != nil {
			return err
		}

		if session.Status == models.UploadStatusPending {
			n, err := sessions.CompletePending(ctx, hash, fileID)
			if err != nil {
				return err
			}
			c.logger.Info(ctx, "upload finalized", "hash", hash, "key", key, "status", status, "sessions_completed", n)
		} else {
			c.logger.Info(ctx, "registry refreshed", "hash", hash, "key", key, "status", status)
		}

		return nil
	})
}
