package notify

import (
	"context"
	"fmt"
	"time"

	"classbook/internal/metrics"
	"classbook/internal/model"

	"golang.org/x/time/rate"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts counts the first try.
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
	}
}

// Config holds notifier configuration.
type Config struct {
	Retry RetryConfig
	// RatePerSecond paces sends. Zero disables pacing.
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns the default notifier configuration.
func DefaultConfig() Config {
	return Config{
		Retry:         DefaultRetryConfig(),
		RatePerSecond: 2,
		Burst:         1,
	}
}

// RecipientResult is the outcome for one address.
type RecipientResult struct {
	Email    string `json:"email"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Result tallies one notification fan-out.
type Result struct {
	Success    bool              `json:"success"`
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []RecipientResult `json:"results,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// Ratio is successful over total; 1 when there was nobody to notify.
func (r *Result) Ratio() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Successful) / float64(r.Total)
}

// Notifier emails the roster about new bookings.
type Notifier struct {
	sender  Sender
	chat    ChatPoster
	roster  Roster
	retry   RetryConfig
	limiter *rate.Limiter
	logger  Logger
	now     func() time.Time
}

// NewNotifier creates a notifier. A nil sender makes every send fail with ErrNotConfigured.
func NewNotifier(sender Sender, roster Roster, config Config, logger Logger) *Notifier {
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 3
	}
	if config.Retry.RetryDelay < 0 {
		config.Retry.RetryDelay = 0
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if roster == nil {
		roster = StaticRoster(nil)
	}

	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}

	return &Notifier{
		sender:  sender,
		roster:  roster,
		retry:   config.Retry,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// WithChat attaches a staff chat channel.
func (n *Notifier) WithChat(chat ChatPoster) *Notifier {
	n.chat = chat
	return n
}

// NotifyBooking announces a one-time booking.
func (n *Notifier) NotifyBooking(ctx context.Context, b model.Booking, roomName string) (*Result, error) {
	return n.Notify(ctx, NoticeForBooking(b, roomName))
}

// NotifyRecurring announces a weekly series.
func (n *Notifier) NotifyRecurring(ctx context.Context, r model.RecurringBooking, roomName string) (*Result, error) {
	return n.Notify(ctx, NoticeForRecurring(r, roomName))
}

// Notify sends notice to every roster address except the author, one at a time.
func (n *Notifier) Notify(ctx context.Context, notice Notice) (*Result, error) {
	n.postChat(ctx, notice)

	if n.sender == nil {
		n.logger.Error("Email notifier is not configured")
		return &Result{Message: ErrNotConfigured.Error()}, ErrNotConfigured
	}

	recipients := Recipients(n.roster.Emails(), notice.TeacherEmail)
	if len(recipients) == 0 {
		n.logger.Info("No other teachers to notify")
		return &Result{Success: true, Message: "No other teachers to notify"}, nil
	}

	title := notice.Title()
	body := notice.Body(n.now())
	n.logger.Info("Sending booking notifications", "recipients", len(recipients), "type", notice.BookingType())

	res := &Result{Total: len(recipients)}
	for _, to := range recipients {
		rr := n.deliver(ctx, Email{To: to, Subject: title, Body: body, Notice: notice})
		if rr.Success {
			res.Successful++
		} else {
			res.Failed++
		}
		res.Results = append(res.Results, rr)
	}
	res.Success = res.Successful > 0

	if res.Failed > 0 {
		n.logger.Error("Some notifications failed", "failed", res.Failed, "total", res.Total)
	}
	n.logger.Info("Notification results", "successful", res.Successful, "total", res.Total)
	return res, nil
}

// TestConfiguration sends a sample notification to a single address.
func (n *Notifier) TestConfiguration(ctx context.Context, to string) (*Result, error) {
	if n.sender == nil {
		return &Result{Message: ErrNotConfigured.Error()}, ErrNotConfigured
	}
	if to == "" {
		return nil, fmt.Errorf("test recipient is required")
	}
	notice := Notice{
		TeacherName:  "Test Teacher",
		TeacherEmail: "test@example.com",
		Subject:      "Test Booking Notification",
		Classroom:    "Test Classroom 1",
		Date:         model.FormatDate(n.now()),
		Time:         "10:00-11:00",
		Notes:        "This is a test notification to verify email service is working correctly.",
	}
	rr := n.deliver(ctx, Email{
		To:      to,
		Subject: "Test Email - " + systemTitle,
		Body:    notice.Body(n.now()),
		Notice:  notice,
	})
	res := &Result{Success: rr.Success, Total: 1, Results: []RecipientResult{rr}}
	if rr.Success {
		res.Successful = 1
	} else {
		res.Failed = 1
	}
	return res, nil
}

func (n *Notifier) deliver(ctx context.Context, e Email) RecipientResult {
	start := n.now()
	attempts, err := n.sendWithRetry(ctx, e)
	metrics.ObserveNotificationDuration(time.Since(start).Seconds())

	rr := RecipientResult{Email: e.To, Attempts: attempts, Success: err == nil}
	if err != nil {
		rr.Error = err.Error()
		metrics.IncNotification("failed")
		n.logger.Error("Notification failed", "to", e.To, "attempts", attempts, "error", err)
		return rr
	}
	metrics.IncNotification("sent")
	n.logger.Debug("Notification sent", "to", e.To, "attempts", attempts)
	return rr
}

// sendWithRetry tries e up to MaxAttempts times with a fixed delay between attempts.
func (n *Notifier) sendWithRetry(ctx context.Context, e Email) (int, error) {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= n.retry.MaxAttempts; attempt++ {
		err := n.sender.Send(ctx, e)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if attempt == n.retry.MaxAttempts {
			break
		}

		metrics.IncNotificationRetry()
		n.logger.Info("Retrying notification",
			"to", e.To,
			"attempt", attempt+1,
			"max_attempts", n.retry.MaxAttempts,
			"delay", n.retry.RetryDelay,
			"error", err)

		select {
		case <-time.After(n.retry.RetryDelay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
	return n.retry.MaxAttempts, lastErr
}

func (n *Notifier) postChat(ctx context.Context, notice Notice) {
	if n.chat == nil {
		return
	}
	if err := n.chat.Post(ctx, notice.Summary()); err != nil {
		n.logger.Error("Failed to post booking to staff chat", "error", err)
	}
}
