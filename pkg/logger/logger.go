// Package logger is the process-wide structured logger. Warnings and errors
// are forwarded to the configured error tracker.
package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitechdev/SimplifySpec/pkg/errortracking"
)

var Logger *zap.SugaredLogger
var errorTracker errortracking.Provider

// Options selects the zap configuration built by Configure.
type Options struct {
	Dev bool
	// Path replaces the default output paths when set.
	Path string
	// Level is a zap level name such as "debug" or "warn".
	Level string
}

// Init builds a development or production logger writing to stderr.
func Init(dev bool) {
	if err := Configure(Options{Dev: dev}); err != nil {
		log.Print(err)
	}
}

// Configure replaces the process logger.
func Configure(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Dev {
		cfg = zap.NewDevelopmentConfig()
	}
	if opts.Path != "" {
		cfg.OutputPaths = []string{opts.Path}
	}
	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("logger level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return UpdateLogger(&cfg)
}

// UpdateLogger builds config and installs the result.
func UpdateLogger(config *zap.Config) error {
	if config == nil {
		cfg := zap.NewProductionConfig()
		config = &cfg
	}
	logger, err := config.Build()
	if err != nil {
		return err
	}
	Logger = logger.Sugar()
	Info("SimplifySpec logger initialized")
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// InitErrorTracking initializes the error tracking provider
func InitErrorTracking(provider errortracking.Provider) {
	errorTracker = provider
	if errorTracker != nil {
		Info("Error tracking initialized")
	}
}

// CloseErrorTracking flushes and closes the error tracking provider
func CloseErrorTracking() error {
	if errorTracker == nil {
		return nil
	}
	errorTracker.Flush(5 * time.Second)
	return errorTracker.Close()
}

func Info(template string, args ...interface{}) {
	if Logger == nil {
		log.Printf(template, args...)
		return
	}
	Logger.Infow(fmt.Sprintf(template, args...), "process_id", os.Getpid())
}

func Debug(template string, args ...interface{}) {
	if Logger == nil {
		return
	}
	Logger.Debugw(fmt.Sprintf(template, args...), "process_id", os.Getpid())
}

func Warn(template string, args ...interface{}) {
	message := fmt.Sprintf(template, args...)
	if Logger == nil {
		log.Print(message)
	} else {
		Logger.Warnw(message, "process_id", os.Getpid())
	}
	track(message, errortracking.SeverityWarning, nil)
}

func Error(template string, args ...interface{}) {
	message := fmt.Sprintf(template, args...)
	if Logger == nil {
		log.Print(message)
	} else {
		Logger.Errorw(message, "process_id", os.Getpid())
	}
	track(message, errortracking.SeverityError, nil)
}

// Errorw logs message with alternating key/value pairs. The pairs are sent
// to the error tracker as extra data.
func Errorw(message string, keysAndValues ...interface{}) {
	if Logger == nil {
		log.Println(append([]interface{}{message}, keysAndValues...)...)
	} else {
		Logger.Errorw(message, append(keysAndValues, "process_id", os.Getpid())...)
	}
	track(message, errortracking.SeverityError, pairs(keysAndValues))
}

// Warnw is Errorw for failures the client caused.
func Warnw(message string, keysAndValues ...interface{}) {
	if Logger == nil {
		log.Println(append([]interface{}{message}, keysAndValues...)...)
	} else {
		Logger.Warnw(message, append(keysAndValues, "process_id", os.Getpid())...)
	}
	track(message, errortracking.SeverityWarning, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}

func track(message string, severity errortracking.Severity, extra map[string]interface{}) {
	if errorTracker == nil {
		return
	}
	if extra == nil {
		extra = map[string]interface{}{}
	}
	extra["process_id"] = os.Getpid()
	errorTracker.CaptureMessage(context.Background(), message, severity, extra)
}

// CatchPanic recovers a panic in a deferred call and reports it.
func CatchPanic(location string) {
	if r := recover(); r != nil {
		_ = HandlePanic(location, r)
	}
}

// HandlePanic logs a recovered panic and returns it as an error.
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        err = logger.HandlePanic("MethodName", r)
//	    }
//	}()
func HandlePanic(methodName string, r any) error {
	stack := debug.Stack()
	message := fmt.Sprintf("Panic in %s: %v", methodName, r)
	if Logger == nil {
		log.Printf("%s\n%s", message, stack)
	} else {
		Logger.Errorw(message, "process_id", os.Getpid(), "stack", string(stack))
	}
	if errorTracker != nil {
		errorTracker.CapturePanic(context.Background(), r, stack, map[string]interface{}{
			"method":     methodName,
			"process_id": os.Getpid(),
		})
	}
	return fmt.Errorf("panic in %s: %v", methodName, r)
}
