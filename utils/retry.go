package utils

import (
	"time"

	"github.com/sirupsen/logrus"
)

// WithRetry runs fn up to attempts times with a linear backoff and returns the last error.
func WithRetry(attempts int, log *logrus.Entry, action string, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts {
			log.Warnf("%s failed (attempt %d/%d): %v", action, i, attempts, err)
			time.Sleep(time.Duration(i) * 200 * time.Millisecond)
		}
	}
	return err
}
