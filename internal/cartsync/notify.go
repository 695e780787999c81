package cartsync

import "go.uber.org/zap"

// Level is the severity of a user-facing notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient message for the shopper. None of them are fatal.
type Notice struct {
	Level   Level
	Op      string
	ItemID  int64
	Message string
	Err     error
}

// Notifier receives notices from the engine. Notify is called from background
// goroutines and must not block.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		return
	}
	fields := []zap.Field{zap.String("op", n.Op), zap.Int64("item_id", n.ItemID)}
	if n.Err != nil {
		fields = append(fields, zap.Error(n.Err))
	}
	switch n.Level {
	case LevelError:
		logger.Error(n.Message, fields...)
	case LevelWarning:
		logger.Warn(n.Message, fields...)
	default:
		logger.Info(n.Message, fields...)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
