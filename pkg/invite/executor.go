package invite

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentbus/pkg/logger"
	"agentbus/pkg/model"
)

// placeholderPattern matches every {name} token in an invoke command.
// Anything left after interpolation is an operator mistake.
var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z_]+\}`)

// Executor turns catalog entries into detached subprocesses. The server
// never tracks the spawned agent; it is expected to register itself.
type Executor struct {
	catalog *Catalog
	log     *logger.Logger
	logDir  string
	busAddr string
}

// NewExecutor creates an executor writing invocation logs under logDir.
func NewExecutor(catalog *Catalog, log *logger.Logger, logDir, busAddr string) *Executor {
	return &Executor{
		catalog: catalog,
		log:     log,
		logDir:  logDir,
		busAddr: busAddr,
	}
}

// Catalog returns the executor's backing catalog.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Invite spawns the named catalog agent onto a thread. Lookup failures
// are errors; a spawn failure comes back as ok=false with the OS error
// as the reason.
func (e *Executor) Invite(ctx context.Context, agentName, threadID string) (*model.InviteResult, error) {
	entry := e.catalog.Get(agentName)
	if entry == nil {
		return nil, model.InvalidInput("agent %q is not in the catalog", agentName)
	}
	if !entry.Enabled {
		return nil, model.InvalidInput("agent %q is disabled", agentName)
	}

	command, err := e.interpolate(entry.InvokeCommand, threadID)
	if err != nil {
		return nil, err
	}

	logPath, err := e.invocationLogPath(entry.Name)
	if err != nil {
		return &model.InviteResult{OK: false, AgentName: entry.Name, Reason: err.Error()}, nil
	}

	if err := e.spawn(command, logPath, entry.TimeoutSeconds); err != nil {
		e.log.Warn("Invite spawn failed",
			zap.String("agent", entry.Name),
			zap.String("thread_id", threadID),
			zap.Error(err))
		return &model.InviteResult{OK: false, AgentName: entry.Name, Reason: err.Error()}, nil
	}

	e.log.Info("Invited agent",
		zap.String("agent", entry.Name),
		zap.String("thread_id", threadID),
		zap.String("log", logPath))

	return &model.InviteResult{
		OK:              true,
		AgentName:       entry.Name,
		CommandExecuted: command,
	}, nil
}

// interpolate binds the whitelisted placeholders. Injected values are
// single-quoted for the host shell; the template itself is trusted
// operator configuration.
func (e *Executor) interpolate(template, threadID string) (string, error) {
	replacer := strings.NewReplacer(
		"{thread_id}", shellQuote(threadID),
		"{session_id}", shellQuote(uuid.NewString()),
		"{bus_address}", shellQuote(e.busAddr),
	)
	command := replacer.Replace(template)

	if leftover := placeholderPattern.FindString(command); leftover != "" {
		return "", model.InvalidInput("invoke command contains unknown placeholder %s", leftover)
	}
	return command, nil
}

// spawn starts the command detached in its own session with output
// captured to logPath. A positive timeout arms a hard kill.
func (e *Executor) spawn(command, logPath string, timeoutSeconds int) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening invocation log: %w", err)
	}

	cmd := exec.Command(resolveShellPath(), "-c", command)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return err
	}

	pid := cmd.Process.Pid
	var killTimer *time.Timer
	if timeoutSeconds > 0 {
		killTimer = time.AfterFunc(time.Duration(timeoutSeconds)*time.Second, func() {
			// Negative pid signals the whole session.
			if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
				e.log.Warn("Invited agent killed on timeout",
					zap.Int("pid", pid),
					zap.Int("timeout_seconds", timeoutSeconds))
			}
		})
	}

	go func() {
		defer logFile.Close()
		err := cmd.Wait()
		if killTimer != nil {
			killTimer.Stop()
		}
		if err != nil {
			e.log.Debug("Invited agent exited with error", zap.Int("pid", pid), zap.Error(err))
			return
		}
		e.log.Debug("Invited agent exited", zap.Int("pid", pid))
	}()

	return nil
}

func (e *Executor) invocationLogPath(agentName string) (string, error) {
	if err := os.MkdirAll(e.logDir, 0o755); err != nil {
		return "", fmt.Errorf("creating invocation log dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s.log",
		sanitizeFilename(agentName),
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
	return filepath.Join(e.logDir, name), nil
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// shellQuote wraps s in single quotes, escaping embedded ones so the
// value survives the shell verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func resolveShellPath() string {
	for _, path := range []string{"/bin/sh", "/usr/bin/sh", "/bin/bash", "/usr/bin/bash"} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return path
		}
	}
	if found, err := exec.LookPath("sh"); err == nil {
		return found
	}
	return "sh"
}
