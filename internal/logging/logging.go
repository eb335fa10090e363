// Package logging is a small leveled logger writing to stdout, modeled
// on the level/prefix conventions of the corpus's server logs.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
}

var std = &Logger{out: log.New(os.Stdout, "", log.LstdFlags), level: INFO}

// SetLevel adjusts the minimum level the default logger emits.
func SetLevel(l Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = l
}

func logf(l Level, format string, args ...interface{}) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if l < std.level {
		return
	}
	std.out.Printf("[%s] %s", levelNames[l], fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) { logf(DEBUG, format, args...) }
func Infof(format string, args ...interface{})  { logf(INFO, format, args...) }
func Warnf(format string, args ...interface{})  { logf(WARN, format, args...) }
func Errorf(format string, args ...interface{}) { logf(ERROR, format, args...) }
