package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "ipc").Logger()
	return &l
}

// Server 通过 unix socket 向客户端广播消息，每条消息以换行结尾。
// 新连接的客户端会先收到最近一条消息。
type Server struct {
	socketPath      string
	listener        net.Listener
	clientConns     map[net.Conn]struct{}
	clientConnsLock sync.Mutex
	last            string
	lastLock        sync.Mutex
	lockFile        *os.File
	lockFilePath    string
	onClients       func(int)
	closed          bool
	wg              sync.WaitGroup
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		clientConns:  make(map[net.Conn]struct{}),
		lockFilePath: socketPath + ".lock",
		onClients:    func(int) {},
	}
}

// OnClientsChanged 注册客户端数量变化回调，需在 Start 之前调用
func (s *Server) OnClientsChanged(fn func(int)) {
	s.onClients = fn
}

func (s *Server) checkAndCleanOldLock() {
	// 检查锁文件是否存在
	content, err := os.ReadFile(s.lockFilePath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		// 读取失败，直接删除锁文件
		logger().Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		// PID格式不正确，删除锁文件
		logger().Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	// 检查进程是否存在
	if !isProcessRunning(pid) {
		logger().Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	logger().Info().Int("existing_pid", pid).Msg("Another process is still running")
}

func isProcessRunning(pid int) bool {
	// kill(pid, 0) 不发送信号，只检查进程是否存在
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// 尝试获取独占锁
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyricsync instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后再截断，避免清掉正在运行实例的 PID
	if err := file.Truncate(0); err == nil {
		_, err = file.WriteString(fmt.Sprintf("%d\n", os.Getpid()))
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger().Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		logger().Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

func (s *Server) Start() error {
	// 首先尝试获取进程锁
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger().Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			logger().Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	s.lastLock.Lock()
	last := s.last
	s.lastLock.Unlock()

	s.clientConnsLock.Lock()
	if s.closed {
		s.clientConnsLock.Unlock()
		conn.Close()
		return
	}
	s.clientConns[conn] = struct{}{}
	count := len(s.clientConns)
	if last != "" {
		if _, err := conn.Write([]byte(last)); err != nil {
			logger().Error().Err(err).Msg("Failed to send initial message")
		}
	}
	s.clientConnsLock.Unlock()
	s.onClients(count)

	logger().Info().Int("clients", count).Msg("Client connected")

	// 客户端不发送数据，读到 EOF 即断开
	reader := bufio.NewReader(conn)
	for {
		if _, err := reader.ReadByte(); err != nil {
			break
		}
	}

	s.removeClient(conn)
	logger().Info().Msg("Client disconnected")
}

func (s *Server) removeClient(conn net.Conn) {
	s.clientConnsLock.Lock()
	_, ok := s.clientConns[conn]
	delete(s.clientConns, conn)
	count := len(s.clientConns)
	s.clientConnsLock.Unlock()

	if ok {
		conn.Close()
		s.onClients(count)
	}
}

// Broadcast 向所有客户端发送一条消息
func (s *Server) Broadcast(msg string) {
	msg = strings.TrimRight(msg, "\n") + "\n"

	s.lastLock.Lock()
	s.last = msg
	s.lastLock.Unlock()

	s.clientConnsLock.Lock()
	var failed []net.Conn
	payload := []byte(msg)
	for conn := range s.clientConns {
		if _, err := conn.Write(payload); err != nil {
			logger().Error().Err(err).Msg("Failed to write to client, removing")
			failed = append(failed, conn)
		}
	}
	s.clientConnsLock.Unlock()

	for _, conn := range failed {
		s.removeClient(conn)
	}
}

// Clients 当前连接的客户端数量
func (s *Server) Clients() int {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}

	s.clientConnsLock.Lock()
	s.closed = true
	for conn := range s.clientConns {
		conn.Close()
	}
	s.clientConnsLock.Unlock()

	s.wg.Wait()
	os.Remove(s.socketPath)
	s.releaseLock()
}
