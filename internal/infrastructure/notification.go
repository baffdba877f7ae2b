package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// NotificationService sends desktop notifications. A nil service is a no-op.
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n == nil {
		return nil
	}
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		if n.config.Sound {
			script += ` sound name "default"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}
	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyLoginRequired tells the user a platform needs a manual login
func (n *NotificationService) NotifyLoginRequired(platform domain.Platform, waiting int) {
	n.Send("Login Required",
		fmt.Sprintf("%s needs a login, %d link(s) waiting", platform, waiting))
}

// NotifyBatchCompleted summarizes a finished batch
func (n *NotificationService) NotifyBatchCompleted(summary *domain.BatchSummary) {
	n.Send("Batch Completed",
		fmt.Sprintf("%d collected, %d waiting for login, %d failed",
			summary.Succeeded, summary.Suspended, summary.Failed))
}

// NotifyJobFailed reports a link that could not be collected
func (n *NotificationService) NotifyJobFailed(job *domain.Job) {
	n.Send("Collection Failed",
		fmt.Sprintf("%s (%s)", truncateString(strings.TrimSpace(job.ShareText), 30), job.FailureCategory))
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
