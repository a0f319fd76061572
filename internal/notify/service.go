package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/logging"
)

// Service is the notification surface exposed to the dispatcher and CLI.
// Delivery is advisory: failures are reported, never escalated.
type Service interface {
	NotifyNewItem(ctx context.Context, path string, isDir bool) error
	NotifyRuleFired(ctx context.Context, rule, action, path string) error
	NotifyResync(ctx context.Context, target string) error
	NotifyWatchFailed(ctx context.Context, target string, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service from configuration. Disabled
// notifications, or a configuration yielding no usable backend, produce a
// noop implementation.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil || !cfg.Notifications.Enabled {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second

	var sinks []Sink
	for _, backend := range cfg.Notifications.Backends {
		switch backend {
		case "desktop":
			sinks = append(sinks, newDesktopSink(nil))
		case "ntfy":
			topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
			if topic == "" {
				continue
			}
			sinks = append(sinks, newNtfySink(topic, timeout))
		}
	}
	if len(sinks) == 0 {
		return noopService{}
	}

	return &service{
		sinks:  sinks,
		logger: logging.NewComponentLogger(logger, "notify"),
	}
}

type service struct {
	sinks  []Sink
	logger *slog.Logger
}

func (s *service) NotifyNewItem(ctx context.Context, path string, isDir bool) error {
	label := "file"
	if isDir {
		label = "directory"
	}
	return s.deliver(ctx, Message{
		Title: fmt.Sprintf("New %s detected", label),
		Body:  path,
		Tags:  []string{"housekeeper", "new-item"},
	})
}

func (s *service) NotifyRuleFired(ctx context.Context, rule, action, path string) error {
	return s.deliver(ctx, Message{
		Title: fmt.Sprintf("Housekeeper - %s", rule),
		Body:  fmt.Sprintf("%s: %s", action, path),
		Tags:  []string{"housekeeper", "rule", action},
	})
}

func (s *service) NotifyResync(ctx context.Context, target string) error {
	return s.deliver(ctx, Message{
		Title:    "Housekeeper - Resync",
		Body:     fmt.Sprintf("Event history for %s was incomplete; re-scanned", target),
		Tags:     []string{"housekeeper", "resync"},
		Priority: "low",
	})
}

func (s *service) NotifyWatchFailed(ctx context.Context, target string, cause error) error {
	body := fmt.Sprintf("Stopped watching %s", target)
	if cause != nil {
		body = fmt.Sprintf("%s: %s", body, strings.TrimSpace(cause.Error()))
	}
	return s.deliver(ctx, Message{
		Title:    "Housekeeper - Watch Failed",
		Body:     body,
		Tags:     []string{"housekeeper", "error", "alert"},
		Priority: "high",
	})
}

func (s *service) TestNotification(ctx context.Context) error {
	return s.deliver(ctx, Message{
		Title:    "Housekeeper - Test",
		Body:     "Notification system test",
		Tags:     []string{"housekeeper", "test"},
		Priority: "low",
	})
}

// deliver fans a message out to every sink. A transient failure is retried
// exactly once; a second failure is reported in the joined error and logged,
// never escalated.
func (s *service) deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := s.sendWithRetry(ctx, sink, msg); err != nil {
			s.logger.Warn("notification delivery failed",
				logging.String("sink", sink.Name()),
				logging.String("title", msg.Title),
				logging.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *service) sendWithRetry(ctx context.Context, sink Sink, msg Message) error {
	err := sink.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	s.logger.Debug("notification send failed, retrying once",
		logging.String("sink", sink.Name()),
		logging.Error(err))
	return sink.Send(ctx, msg)
}

type noopService struct{}

func (noopService) NotifyNewItem(context.Context, string, bool) error             { return nil }
func (noopService) NotifyRuleFired(context.Context, string, string, string) error { return nil }
func (noopService) NotifyResync(context.Context, string) error                    { return nil }
func (noopService) NotifyWatchFailed(context.Context, string, error) error        { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
