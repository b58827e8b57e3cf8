package i3block

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// sigRTMin Linux 下 glibc 可见的 SIGRTMIN，i3blocks 的 signal=N 对应 SIGRTMIN+N
	sigRTMin        = 34
	refreshInterval = 10 * time.Second
)

var ErrNotFound = errors.New("i3blocks process not found")

func logger() *zerolog.Logger {
	l := log.With().Str("component", "i3block").Logger()
	return &l
}

// Controller tracks the i3blocks PID and asks it to refresh the lyrics block.
type Controller struct {
	process  string
	signal   syscall.Signal
	pid      int
	pidMutex sync.RWMutex

	findPID func(process string) (int, error)
	kill    func(pid int, sig syscall.Signal) error
}

// NewController creates a controller that sends SIGRTMIN+blockSignal to process.
func NewController(process string, blockSignal int) *Controller {
	return &Controller{
		process: process,
		signal:  syscall.Signal(sigRTMin + blockSignal),
		pid:     -1,
		findPID: findPID,
		kill:    killPID,
	}
}

// Run refreshes the stored PID every 10 seconds until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	if err := c.RefreshPID(); err != nil {
		logger().Warn().Err(err).Msg("Failed to find i3blocks")
	}
	logger().Info().Str("process", c.process).Int("signal", int(c.signal)).Msg("i3block controller started")

	for {
		select {
		case <-ticker.C:
			if err := c.RefreshPID(); err != nil {
				logger().Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-ctx.Done():
			logger().Info().Msg("i3block controller stopped")
			return
		}
	}
}

// RefreshPID updates the stored PID of the i3blocks process.
func (c *Controller) RefreshPID() error {
	pid, err := c.findPID(c.process)

	c.pidMutex.Lock()
	oldPID := c.pid
	if err != nil {
		c.pid = -1
	} else {
		c.pid = pid
	}
	c.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		logger().Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return nil
}

// GetPID returns the current stored PID, -1 when unknown.
func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Signal asks i3blocks to re-run the lyrics block.
func (c *Controller) Signal() error {
	pid := c.GetPID()
	if pid <= 0 {
		return fmt.Errorf("invalid PID %d: %w", pid, ErrNotFound)
	}

	if err := c.kill(pid, c.signal); err != nil {
		// 进程可能已重启，下次刷新前先清掉旧 PID
		c.pidMutex.Lock()
		if c.pid == pid {
			c.pid = -1
		}
		c.pidMutex.Unlock()
		return fmt.Errorf("failed to send signal %d to process %d: %w", c.signal, pid, err)
	}
	return nil
}

func killPID(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}

func findPID(process string) (int, error) {
	output, err := exec.Command("pgrep", "-x", process).Output()
	if err == nil {
		return parsePgrepOutput(string(output))
	}

	// pgrep 不可用时退回到 ps
	output, err = exec.Command("ps", "-eo", "pid,comm").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}
	return parsePsOutput(string(output), process)
}

// parsePgrepOutput 多个 PID 时取第一个
func parsePgrepOutput(output string) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return -1, fmt.Errorf("failed to parse PID %q: %w", line, err)
		}
		return pid, nil
	}
	return -1, ErrNotFound
}

func parsePsOutput(output, process string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != process {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		return pid, nil
	}
	return -1, ErrNotFound
}
