package nvim

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"

	"github.com/sokinpui/track.go/model"
)

// Manager handles the connection and interaction with a Neovim instance.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
	log           *zap.Logger
}

// ListenAddress returns the address of the Neovim instance this process runs
// under, if any.
func ListenAddress() string {
	if addr := os.Getenv("NVIM"); addr != "" {
		return addr
	}
	return os.Getenv("NVIM_LISTEN_ADDRESS")
}

// New creates a new Neovim manager, connecting to the instance at addr (or
// the one from the environment when addr is empty) or starting a new
// headless one.
func New(addr string, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if addr == "" {
		addr = ListenAddress()
	}

	// Try to connect to a running instance first.
	if addr != "" {
		v, err := nvim.Dial(addr)
		if err == nil {
			log.Debug("connected to nvim", zap.String("addr", addr))
			return &Manager{nvim: v, log: log}, nil
		}
		log.Warn("nvim dial failed, starting headless instance", zap.String("addr", addr), zap.Error(err))
	}

	tmpDir, err := os.MkdirTemp("", "track-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	// Wait for the socket file to appear.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}

	m := &Manager{
		nvim:          v,
		isSelfStarted: true,
		cmd:           cmd,
		socketPath:    socketPath,
		log:           log,
	}
	m.configureTempInstance()
	return m, nil
}

// Interactive reports whether the manager is attached to a user's editor
// rather than a headless instance it started itself.
func (m *Manager) Interactive() bool {
	return !m.isSelfStarted
}

// configureTempInstance lets a headless instance hold many modified buffers.
func (m *Manager) configureTempInstance() {
	b := m.nvim.NewBatch()
	b.Command("set hidden")
	b.Command("set noswapfile")
	if err := b.Execute(); err != nil {
		m.log.Warn("configuring headless nvim", zap.Error(err))
	}
}

// Close disconnects from Neovim and cleans up if it was self-started.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
}

// processSequentially is a generic helper function to run a set of jobs sequentially.
func processSequentially[T any](
	items []T,
	processFn func(item T) (path string, success bool),
	progressCb func(int),
) (succeeded, failed []string) {
	if len(items) == 0 {
		return nil, nil
	}

	for i, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}

	return succeeded, failed
}

// loadBuffer edits filePath and replaces the buffer contents with text. It
// returns the buffer handle.
func (m *Manager) loadBuffer(filePath, text string) (nvim.Buffer, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, err
	}

	var escaped string
	if err := m.nvim.Call("fnameescape", &escaped, absPath); err != nil {
		return 0, fmt.Errorf("escape %s: %w", absPath, err)
	}
	if err := m.nvim.Command("edit " + escaped); err != nil {
		return 0, fmt.Errorf("edit %s: %w", absPath, err)
	}
	buf, err := m.nvim.CurrentBuffer()
	if err != nil {
		return 0, err
	}
	if err := m.nvim.SetBufferLines(buf, 0, -1, true, toLines(text)); err != nil {
		return 0, fmt.Errorf("load %s: %w", absPath, err)
	}
	return buf, nil
}

// bufferText reads the whole buffer in the engine's text representation.
func (m *Manager) bufferText(buf nvim.Buffer) (string, error) {
	lines, err := m.nvim.BufferLines(buf, 0, -1, true)
	if err != nil {
		return "", err
	}
	return fromLines(lines), nil
}

// SaveAllBuffers writes all modified buffers to disk.
func (m *Manager) SaveAllBuffers() error {
	if err := m.nvim.Command("wa!"); err != nil {
		return fmt.Errorf("write buffers: %w", err)
	}
	return nil
}

// OpenChanges loads every proposed file into a buffer through open.
func OpenChanges(changes []model.FileChange, open func(model.FileChange) error, progressCb func(int)) (opened, failed []string) {
	processFn := func(change model.FileChange) (string, bool) {
		return change.Path, open(change) == nil
	}
	return processSequentially(changes, processFn, progressCb)
}
