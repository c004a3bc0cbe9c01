package main

import (
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultReceiptPollInterval = time.Second
)

// readRetryOptions applies to idempotent reads only; transactions are never resubmitted.
func readRetryOptions(conf *RetryConf) []retry.Option {
	return []retry.Option{
		retry.Attempts(conf.Attempts),
		retry.Delay(time.Millisecond * time.Duration(conf.DelayMs)),
		retry.DelayType(retry.BackOffDelay),
	}
}

var (
	infiniteAttempts = retry.Attempts(0)
	fixedDelay       = retry.DelayType(retry.FixedDelay)
)
