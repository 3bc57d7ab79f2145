package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/sheets"

	"github.com/patrickmn/go-cache"
)

const TestNotificationMessage = "Đây là tin nhắn test từ FinBot!"

// NotificationSchedulerConfig holds configuration for the reminder loop
type NotificationSchedulerConfig struct {
	// Interval is how often the clock is checked (default: 30s)
	Interval time.Duration

	// DedupeTTL is how long a sent reminder key is remembered (default: 24h)
	DedupeTTL time.Duration
}

// DefaultNotificationSchedulerConfig returns sensible defaults
func DefaultNotificationSchedulerConfig() NotificationSchedulerConfig {
	return NotificationSchedulerConfig{
		Interval:  30 * time.Second,
		DedupeTTL: 24 * time.Hour,
	}
}

// ReminderMessage is the text sent at a configured HH:MM.
func ReminderMessage(hhmm string) string {
	return fmt.Sprintf("⏰ Đã %s. Hãy dành 1 phút để cập nhật chi tiêu nhé!", hhmm)
}

// NotificationScheduler sends a reminder at each configured time of day, at
// most once per day and time.
type NotificationScheduler struct {
	store    *ledger.Store
	notifier sheets.Notifier
	clock    Clock
	config   NotificationSchedulerConfig
	sent     *cache.Cache
	logger   *log.Logger
	metrics  *metrics.Metrics

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewNotificationScheduler(
	store *ledger.Store,
	notifier sheets.Notifier,
	clock Clock,
	config NotificationSchedulerConfig,
	logger *log.Logger,
	m *metrics.Metrics,
) *NotificationScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultNotificationSchedulerConfig().Interval
	}
	if config.DedupeTTL <= 0 {
		config.DedupeTTL = DefaultNotificationSchedulerConfig().DedupeTTL
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &NotificationScheduler{
		store:    store,
		notifier: notifier,
		clock:    clock,
		config:   config,
		sent:     cache.New(config.DedupeTTL, time.Hour),
		logger:   logger.WithComponent(log.ComponentNotify),
		metrics:  m,
	}
}

// Start begins the check loop. Returns an error if already running.
func (s *NotificationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("notification scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Notification scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to exit.
func (s *NotificationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Notification scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Notification scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the loop is active
func (s *NotificationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run starts the loop and blocks until ctx is done, then stops it.
func (s *NotificationScheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.WithoutCancel(ctx))
}

func (s *NotificationScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check sends the reminder if the current HH:MM is a configured time that
// has not fired today. It reports whether a reminder was due. The key is
// recorded even when delivery is skipped or fails.
func (s *NotificationScheduler) Check(ctx context.Context) bool {
	settings := s.store.Settings()
	if !settings.NotificationEnabled || len(settings.NotificationTimes) == 0 {
		return false
	}

	now := s.clock()
	hhmm := now.Format("15:04")
	if !slices.Contains(settings.NotificationTimes, hhmm) {
		return false
	}
	key := now.Format("2006-01-02") + "_" + hhmm
	if err := s.sent.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return false
	}

	if settings.TelegramChatID == "" || s.notifier == nil {
		s.metrics.IncrNotification("skipped")
		s.logger.DebugContext(ctx, "Reminder due but no chat configured", log.FieldNotifyTime, hhmm)
		return true
	}
	s.send(ctx, settings.TelegramChatID, ReminderMessage(hhmm), hhmm)
	return true
}

func (s *NotificationScheduler) send(ctx context.Context, chatID, message, hhmm string) {
	if err := s.notifier.Notify(ctx, chatID, message); err != nil {
		s.metrics.IncrNotification("error")
		s.logger.WarnContext(ctx, "Failed to send reminder",
			log.FieldOperation, log.OpNotify,
			log.FieldNotifyTime, hhmm,
			log.FieldError, err)
		return
	}
	s.metrics.IncrNotification("sent")
	s.logger.InfoContext(ctx, "Reminder sent", log.FieldNotifyTime, hhmm)
}

// SendTest sends the fixed test message to the configured chat.
func (s *NotificationScheduler) SendTest(ctx context.Context) error {
	settings := s.store.Settings()
	if settings.TelegramChatID == "" {
		return fmt.Errorf("%w: telegram chat id not set", ErrBadRequest)
	}
	if s.notifier == nil {
		return sheets.ErrNotConfigured
	}
	if err := s.notifier.Notify(ctx, settings.TelegramChatID, TestNotificationMessage); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	return nil
}
