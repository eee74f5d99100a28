// Package logger configures logrus and implements a formatter that prefixes
// log messages with the name of the periodic task that emitted them.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// TaskField is the logrus field that holds the task name
const TaskField = "task"

// NamespaceFormatter is a logrus formatter that adds the 'task' field to a log prefix
// for nicer formatted text output.
type NamespaceFormatter struct {
	Parent logrus.Formatter
}

// Format implements logrus.Formatter
func (f *NamespaceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	task, exists := entry.Data[TaskField]
	if exists {
		ns := fmt.Sprint(task)
		entry.Message = fmt.Sprintf("[%-8s] %s", ns, entry.Message)
	}
	return f.Parent.Format(entry)
}
