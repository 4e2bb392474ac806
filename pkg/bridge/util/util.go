package util

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	ps "github.com/mitchellh/go-ps"
	"go.uber.org/zap"
)

var errNoSuchProcess = errors.New("no such process")

// EnsureDirExists creates the given directory path if it doesn't already exist
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}

	return nil
}

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// Linux returns true if we're running on Linux
func Linux() bool {
	return runtime.GOOS == "linux"
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will notify the
// program if it receives an interrupt from the OS
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	return c
}

// DumpAllGoroutines writes stack traces of all goroutines to the logger
func DumpAllGoroutines(logger *zap.SugaredLogger) {
	buf := make([]byte, 1024*1024) // 1MB buffer
	n := runtime.Stack(buf, true)
	logger.Errorw("All goroutines stack trace", "stack", string(buf[:n]))
}

// OpenExternal hands the given target (a file or URL) to the desktop's default handler
func OpenExternal(logger *zap.SugaredLogger, target string) error {

	// use cmd for windows, xdg-open for linux
	execCommandArgs := []string{"cmd.exe", "/C", "start", "", target}
	if Linux() {
		execCommandArgs = []string{"xdg-open", target}
	}

	command := exec.Command(execCommandArgs[0], execCommandArgs[1:]...)

	if err := command.Start(); err != nil {
		logger.Warnw("Failed to spawn detached process",
			"command", execCommandArgs[0],
			"target", target,
			"error", err)

		return fmt.Errorf("spawn detached proc: %w", err)
	}

	// don't leave a zombie behind
	go command.Wait()

	return nil
}

// ClampScalar keeps a volume scalar inside [0, 1]
func ClampScalar(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RoundScalar rounds the given float32 to 4 points of precision (e.g. 0.15442 -> 0.1544, 0.549999 -> 0.55),
// which only strips float32 noise so repeated relative adjustments don't drift
func RoundScalar(v float32) float32 {
	return float32(math.Round(float64(v)*10000) / 10000.0)
}

// ProcessName returns the executable name of the given process ID
func ProcessName(pid int) (string, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return "", fmt.Errorf("find process by pid: %w", err)
	}

	// the process may have already exited
	if process == nil {
		return "", errNoSuchProcess
	}

	return process.Executable(), nil
}

// LocalIPv4 returns the first non-loopback IPv4 address of this machine, which is what
// other devices on the same network should use to reach us
func LocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}

		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}

	return "", errors.New("no non-loopback IPv4 address found")
}
