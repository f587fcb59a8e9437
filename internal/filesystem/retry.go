// Package filesystem wraps file operations with retry logic for the
// transient errors network-mounted photo libraries produce, stale NFS
// handles in particular.
package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"photo-catalog/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
	}
}

// isTransient reports whether an error is worth retrying: stale NFS
// handles and interrupted syscalls, not genuine absence or permission
// problems.
func isTransient(err error) bool {
	return errors.Is(err, syscall.ESTALE) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EIO)
}

// retry runs fn up to MaxAttempts times with linear backoff.
func retry(op, path string, config RetryConfig, fn func() error) error {
	var err error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt < config.MaxAttempts {
			delay := config.BaseDelay * time.Duration(attempt)
			logging.Debug("Transient %s error on %s (attempt %d/%d), retrying in %s: %v",
				op, path, attempt, config.MaxAttempts, delay, err)
			time.Sleep(delay)
		}
	}
	logging.Warn("Giving up on %s %s after %d attempts: %v", op, path, config.MaxAttempts, err)
	return err
}

// StatWithRetry performs os.Stat, retrying transient errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := retry("stat", path, config, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	return info, err
}

// OpenWithRetry performs os.Open, retrying transient errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	err := retry("open", path, config, func() error {
		var openErr error
		f, openErr = os.Open(path)
		return openErr
	})
	return f, err
}
