package service

import (
	"context"

	"file-share-bot/pkg/log"
	"file-share-bot/pkg/metrics"
	"file-share-bot/pkg/telegram"
)

// retryRateLimited 调用 fn，遇到限流时等待平台给出的时长后重试，最多调用 attempts 次。
// 返回最后一次调用的错误；等待被 ctx 打断时返回 ctx 的错误。
func retryRateLimited(ctx context.Context, sleep Sleeper, attempts int, what string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		rl, limited := telegram.AsRateLimit(err)
		if !limited || attempt >= attempts {
			return err
		}
		metrics.RateLimited.Inc()
		log.Warnf("%s: rate limited, waiting %s", what, rl.RetryAfter)
		if werr := sleep(ctx, rl.RetryAfter); werr != nil {
			return werr
		}
	}
}
