package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// Tray shows messages through the desktop tray companion, which announces
// itself with a "port|pid|secret" lockfile.
type Tray struct {
	client *http.Client
}

func NewTray() *Tray {
	return &Tray{client: &http.Client{}}
}

type trayPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

func (t *Tray) Send(ctx context.Context, message string) bool {
	if err := t.Notify(ctx, message); err != nil {
		logger.Debug("Tray notification not delivered", "error", err)
		return false
	}
	return true
}

func (t *Tray) Notify(ctx context.Context, text string) error {
	dir, err := TrayConfigDir()
	if err != nil {
		return err
	}
	lock, err := readLockfile(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}
	return t.post(ctx, lock, trayPayload{Text: text, DurationMs: constants.NotificationDurationMs})
}

// TrayConfigDir returns the tray app's lockfile directory, honouring a
// lockfile_dir override in its settings.json.
func TrayConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	dir := filepath.Join(configDir, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if err != nil {
		return dir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil && store.Settings.LockfileDir != nil && *store.Settings.LockfileDir != "" {
		return *store.Settings.LockfileDir, nil
	}
	return dir, nil
}

type lockfile struct {
	port   int
	pid    int
	secret string
}

func readLockfile(path string) (lockfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return lockfile{}, fmt.Errorf("%s is not running", constants.TrayExecutablePrefix)
	}
	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return lockfile{}, errors.New("lockfile is malformed")
	}

	var lock lockfile
	if lock.port, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return lockfile{}, errors.New("invalid port number in lockfile")
	}
	if lock.port < 1 || lock.port > 65535 {
		return lockfile{}, fmt.Errorf("port number %d is outside valid range (1-65535)", lock.port)
	}
	if lock.pid, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return lockfile{}, errors.New("invalid process ID in lockfile")
	}
	if lock.secret = strings.TrimSpace(parts[2]); lock.secret == "" {
		return lockfile{}, errors.New("secret in lockfile is empty")
	}

	proc, err := findProcessFunc(lock.pid)
	if err != nil || proc == nil {
		return lockfile{}, fmt.Errorf("%s process not running", constants.TrayExecutablePrefix)
	}
	if !strings.HasPrefix(proc.Executable(), constants.TrayExecutablePrefix) {
		return lockfile{}, fmt.Errorf("process with PID %d is not %s (is %s)", lock.pid, constants.TrayExecutablePrefix, proc.Executable())
	}
	return lock, nil
}

// trayBaseURL is the loopback address the tray listens on.
var trayBaseURL = func(port int) string { return fmt.Sprintf("http://127.0.0.1:%d", port) }

func (t *Tray) post(ctx context.Context, lock lockfile, payload trayPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, trayBaseURL(lock.port), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Habitenforcer-Secret", lock.secret)

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(res.Body)
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, string(msg))
}
