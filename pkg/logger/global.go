// pkg/logger/global.go
package logger

import "io"

var globalLogger *Logger

func InitGlobal(logPath, logLevel string, debug bool) error {
	l, err := NewLogger(logPath, logLevel, debug)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// SetGlobalWriter направляет глобальный логгер в w (удобно в тестах)
func SetGlobalWriter(w io.Writer, logLevel string) {
	globalLogger = NewWriterLogger(w, logLevel)
}

// SetGlobal подменяет глобальный логгер, nil отключает вывод
func SetGlobal(l *Logger) {
	globalLogger = l
}

func GetLogger() *Logger {
	return globalLogger
}

// Глобальные методы для удобства
func Debug(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debug(format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Info(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warn(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Error(format, v...)
	}
}

func Summary(title string, stats map[string]string) {
	if globalLogger != nil {
		globalLogger.Summary(title, stats)
	}
}

func Change(competitor, productID, direction string, oldPrice, newPrice, changePercent float64) {
	if globalLogger != nil {
		globalLogger.Change(competitor, productID, direction, oldPrice, newPrice, changePercent)
	}
}

func Close() {
	if globalLogger != nil {
		globalLogger.Close()
	}
}
