package main

import (
	"fmt"
	"os"
	"strings"
)

// consoleLogger implements pipeline.Logger on stdout/stderr.
type consoleLogger struct{}

func (l *consoleLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l *consoleLogger) Info(msg string, keysAndValues ...interface{}) {
	fmt.Println(format(msg, keysAndValues))
}

func (l *consoleLogger) Warn(msg string, keysAndValues ...interface{}) {
	fmt.Fprintln(os.Stderr, format("Warning: "+msg, keysAndValues))
}

func (l *consoleLogger) Error(msg string, keysAndValues ...interface{}) {
	fmt.Fprintln(os.Stderr, format("Error: "+msg, keysAndValues))
}

// format renders a message with trailing key=value pairs.
func format(msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}
