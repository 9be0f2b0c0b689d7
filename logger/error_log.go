package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// errorLogHook copies warning and error entries to a dedicated sink so that
// failed fetches and extractions can be reviewed after a run.
type errorLogHook struct {
	mu        sync.Mutex
	out       io.Writer
	formatter logrus.Formatter
	counts    map[logrus.Level]int
}

func (h *errorLogHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *errorLogHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[entry.Level]++
	_, err = h.out.Write(b)
	return err
}

// EnableErrorLog routes warn and error entries to output in addition to the
// primary sink. output accepts the same values as Configure.
func (l *Log) EnableErrorLog(output string, maxAge int) error {
	if output == "" {
		return nil
	}
	w, err := openOutput(output, maxAge)
	if err != nil {
		return fmt.Errorf("error log: %w", err)
	}
	return l.attachErrorLog(w)
}

func (l *Log) attachErrorLog(w io.Writer) error {
	if l.errorLog != nil {
		return fmt.Errorf("error log already enabled")
	}
	l.errorLog = &errorLogHook{
		out:       w,
		formatter: jsonFormatter(),
		counts:    make(map[logrus.Level]int),
	}
	l.AddHook(l.errorLog)
	return nil
}

// ErrorLogCounts returns how many warn and error entries reached the error log.
func (l *Log) ErrorLogCounts() (warnings, errors int) {
	if l.errorLog == nil {
		return 0, 0
	}
	l.errorLog.mu.Lock()
	defer l.errorLog.mu.Unlock()
	return l.errorLog.counts[logrus.WarnLevel], l.errorLog.counts[logrus.ErrorLevel]
}
