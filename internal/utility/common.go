package utility

import (
	"fmt"
	"os"
	"runtime/debug"
)

// GoProtect chạy f với recover, để panic trong goroutine không làm sập server
func GoProtect(f func()) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recover from panic: %v\n", r)
			debug.PrintStack()
		}
	}()
	f()
}

// CeilDiv chia làm tròn lên cho số dương
func CeilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
