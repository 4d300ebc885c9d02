package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunWithTimeout はfnをtimeout以内に終わらせます
// timeoutが0以下の場合は時間制限なしでfnを実行します
// 時間切れ・キャンセル時はfnがctxに従って終了するのを待ってからエラーを返します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("process timed out after %v: %w", timeout, ctx.Err())
		}
		return fmt.Errorf("process canceled: %w", ctx.Err())
	}
}
