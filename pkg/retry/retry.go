package retry

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config はリトライの設定を保持する
type Config struct {
	Attempts     int
	BaseInterval time.Duration
	MaxBackoff   time.Duration
}

// DefaultConfig はデフォルトのリトライ設定を返す
func DefaultConfig() Config {
	return Config{
		Attempts:     1,
		BaseInterval: 50 * time.Millisecond,
		MaxBackoff:   time.Second,
	}
}

// maxShift は BaseInterval をシフトしてもオーバーフローしない上限
const maxShift = 30

// Backoff は指数バックオフ + ジッターを計算する
func Backoff(attempt int, baseInterval, maxBackoff time.Duration) time.Duration {
	if attempt > maxShift {
		attempt = maxShift
	}
	d := baseInterval << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	// +/-10% jitter
	return time.Duration(int64(d) * int64(9+rand.Intn(3)) / 10)
}

// ShouldRetry はエラーに基づいてリトライすべきか判定する。
// 接続拒否・リセット・タイムアウトのみ再試行する
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Do は fn を最大 cfg.Attempts 回実行する。
// ShouldRetry が false を返すエラーは即座に返す
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	attempts := max(cfg.Attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if !ShouldRetry(err) || i == attempts-1 {
			return err
		}

		timer := time.NewTimer(Backoff(i, cfg.BaseInterval, cfg.MaxBackoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}
