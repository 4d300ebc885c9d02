package utils

import (
	"fmt"
	"runtime/debug"
)

// WithStack は起動失敗時のエラーに呼び出し元のスタックトレースを付加します
// 元のエラーはerrors.Is/errors.Asで参照できます
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\nStack trace:\n%s", err, debug.Stack())
}
