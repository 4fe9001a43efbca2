package log

import (
	"time"

	"go.uber.org/zap"
)

// Field lets callers build log fields without importing zap.
type Field = zap.Field

func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func String(key string, val string) Field          { return zap.String(key, val) }
func Any(key string, val any) Field                { return zap.Any(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
