package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Service runs capture -> optimize -> store for one photo.
type Service struct {
	device       Device
	optimizer    Optimizer
	store        ImageStore
	publisher    Publisher
	captureTotal *prometheus.CounterVec
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a capture service. device and optimizer may be nil:
// without a device Capture reports ErrCaptureUnavailable, without an
// optimizer raw bytes are stored. captureTotal has label "result" and may be nil.
func New(
	device Device,
	optimizer Optimizer,
	store ImageStore,
	captureTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		device:       device,
		optimizer:    optimizer,
		store:        store,
		captureTotal: captureTotal,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// WithPublisher publishes every ingested image. A failed publish is logged;
// the image stays stored and the ingest succeeds.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Capture acquires one photo from the device. It never retries.
func (s *Service) Capture(ctx context.Context) ([]byte, error) {
	if s.device == nil {
		s.count("unavailable")
		return nil, fmt.Errorf("%w: no capture device configured", domain.ErrCaptureUnavailable)
	}

	data, err := s.device.Acquire(ctx)
	if err != nil {
		err = classify(ctx, err)
		s.count(resultLabel(err))
		s.logger.Info("Capture failed", zap.Error(err))
		return nil, err
	}
	if len(data) == 0 {
		s.count("no_photo")
		return nil, domain.ErrNoPhoto
	}

	s.count("ok")
	return data, nil
}

// Ingest captures a photo and stores it under a fresh id.
func (s *Service) Ingest(ctx context.Context) (domain.StoredImage, error) {
	data, err := s.Capture(ctx)
	if err != nil {
		return domain.StoredImage{}, err
	}
	return s.IngestBytes(ctx, data)
}

// IngestBytes optimizes and stores bytes obtained elsewhere (e.g. an upload).
func (s *Service) IngestBytes(ctx context.Context, data []byte) (domain.StoredImage, error) {
	if len(data) == 0 {
		return domain.StoredImage{}, domain.ErrNoPhoto
	}

	stored := data
	if s.optimizer != nil {
		stored = s.optimizer.Optimize(ctx, data)
	}

	img := domain.StoredImage{
		ID:        s.newID(),
		Data:      stored,
		Timestamp: s.now(),
	}
	if err := s.store.Put(ctx, img.ID, img.Data, img.Timestamp); err != nil {
		return domain.StoredImage{}, fmt.Errorf("store image: %w", err)
	}

	s.logger.Debug("Image ingested",
		zap.String("id", img.ID),
		zap.Int("raw_bytes", len(data)),
		zap.Int("stored_bytes", len(stored)),
	)

	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, img.ID); err != nil {
			s.logger.Warn("Auto-publish failed", zap.String("id", img.ID), zap.Error(err))
		}
	}
	return img, nil
}

// classify maps device errors onto the capture taxonomy.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrCaptureAborted),
		errors.Is(err, domain.ErrCaptureUnavailable),
		errors.Is(err, domain.ErrNoPhoto):
		return err
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return fmt.Errorf("%w: %w", domain.ErrCaptureAborted, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrCaptureAborted, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrCaptureUnavailable, err)
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrCaptureAborted):
		return "aborted"
	case errors.Is(err, domain.ErrNoPhoto):
		return "no_photo"
	case errors.Is(err, domain.ErrCaptureUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (s *Service) count(result string) {
	if s.captureTotal != nil {
		s.captureTotal.WithLabelValues(result).Inc()
	}
}
