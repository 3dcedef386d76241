package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// AsyncHook ghi log bất đồng bộ để file I/O không block request handling.
// Entries được buffer trong channel và ghi ra các writers trong một goroutine riêng.
type AsyncHook struct {
	writers []io.Writer
	entries chan *logrus.Entry
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewAsyncHookWithWriters tạo một async hook mới với nhiều writers
func NewAsyncHookWithWriters(writers []io.Writer, bufferSize int) *AsyncHook {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	hook := &AsyncHook{
		writers: writers,
		entries: make(chan *logrus.Entry, bufferSize),
	}

	hook.wg.Add(1)
	go hook.processEntries()

	return hook
}

// Levels trả về các log levels mà hook này xử lý
func (h *AsyncHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire không block: nếu channel đầy thì bỏ entry
func (h *AsyncHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		// Hook đã đóng, ghi trực tiếp (fallback)
		data, err := format(entry)
		if err != nil {
			return err
		}
		for _, writer := range h.writers {
			_, _ = writer.Write(data)
		}
		return nil
	}

	select {
	case h.entries <- snapshot(entry):
	default:
		// Channel đầy, không log ở đây để tránh vòng lặp
	}
	return nil
}

// processEntries có recover để goroutine logger không làm crash server
func (h *AsyncHook) processEntries() {
	defer h.wg.Done()

	for entry := range h.entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "[LOGGER PANIC] Logger goroutine panic recovered: %v\n", r)
					debug.PrintStack()
				}
			}()

			data, err := format(entry)
			if err != nil {
				return
			}
			for _, writer := range h.writers {
				_, _ = writer.Write(data)
			}
		}()
	}
}

// Close đóng hook và đợi tất cả entries được ghi xong
func (h *AsyncHook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.entries)
	h.wg.Wait()
	return nil
}

func format(entry *logrus.Entry) ([]byte, error) {
	if entry.Logger != nil && entry.Logger.Formatter != nil {
		return entry.Logger.Formatter.Format(entry)
	}
	line, err := entry.String()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// snapshot sao chép entry (kể cả Level, Message) để goroutine ghi không đụng Buffer của logrus
func snapshot(entry *logrus.Entry) *logrus.Entry {
	cp := *entry
	cp.Buffer = nil
	cp.Data = make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		cp.Data[k] = v
	}
	return &cp
}
