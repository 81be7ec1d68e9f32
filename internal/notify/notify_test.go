package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/models"
)

func TestStrikeMessages(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.PunishmentOutcome
		want    []string
	}{
		{
			name:    "injected habit",
			outcome: models.HabitInjected{HabitID: "p", Title: constants.PunishmentHabitTitle},
			want:    []string{"STRIKE LOGGED: Run", "Strike count for today: 1", "PUNISHMENT ASSIGNED:\n" + constants.PunishmentHabitTitle},
		},
		{
			name:    "transfer",
			outcome: models.ValueTransferred{AmountUSD: 10, ReceiptID: "0x1234567890abcdef", ExplorerLink: "https://basescan.org/tx/0x1234567890abcdef"},
			want:    []string{"$10 USDC has been sent", "Transaction: 0x12345678...", "https://basescan.org/tx/0x1234567890abcdef"},
		},
		{
			name:    "pending transfer",
			outcome: models.ValueTransferred{AmountUSD: 2.5, ReceiptID: "0xabc", Pending: true},
			want:    []string{"$2.50 USDC", "(confirmation pending)"},
		},
		{
			name:    "failed transfer",
			outcome: models.ValueTransferFailed{Reason: "insufficient token balance"},
			want:    []string{"CRYPTO PUNISHMENT FAILED:\ninsufficient token balance"},
		},
		{
			name:    "deferred",
			outcome: models.Deferred{StrikeCount: 3},
			want:    []string{"Strike 3 logged. Further punishments coming soon."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Strike("Run", 1, tt.outcome)
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("message missing %q:\n%s", w, msg)
				}
			}
		})
	}
}

func TestReminderMessages(t *testing.T) {
	if got := StartReminder("Run"); !strings.HasPrefix(got, "🔔 TIME TO START: Run") {
		t.Errorf("StartReminder = %q", got)
	}
	if got := DeadlineReminder("Run"); !strings.HasPrefix(got, "⏰ DEADLINE APPROACHING: Run") {
		t.Errorf("DeadlineReminder = %q", got)
	}
}

func TestMulti(t *testing.T) {
	var got []string
	record := func(ok bool) Sink {
		return Func(func(_ context.Context, m string) bool {
			got = append(got, m)
			return ok
		})
	}

	if !(Multi{record(false), nil, record(true)}).Send(context.Background(), "hi") {
		t.Error("Multi should succeed when any sink does")
	}
	if len(got) != 2 {
		t.Errorf("every sink should receive the message, got %v", got)
	}
	if (Multi{record(false), Discard{}}).Send(context.Background(), "hi") {
		t.Error("Multi should fail when every sink fails")
	}
	if !(LogSink{}).Send(context.Background(), "hi") {
		t.Error("LogSink always delivers")
	}
}

func twilioServer(t *testing.T, status int, body string, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("missing basic auth: %q %q", user, pass)
		}
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if seen != nil {
			*seen = r.PostForm
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWhatsAppSend(t *testing.T) {
	var form url.Values
	srv := twilioServer(t, http.StatusCreated, `{"sid":"SM1"}`, &form)
	wa, err := NewWhatsApp(WhatsAppConfig{AccountSID: "AC123", AuthToken: "token", From: "+14155238886", To: "+15550001111", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if !wa.Send(context.Background(), "hello") {
		t.Fatal("Send should succeed")
	}
	if form.Get("From") != "whatsapp:+14155238886" || form.Get("To") != "whatsapp:+15550001111" || form.Get("Body") != "hello" {
		t.Errorf("unexpected form: %v", form)
	}

	sid, err := wa.SendTo(context.Background(), "whatsapp:+15552223333", "direct")
	if err != nil || sid != "SM1" {
		t.Errorf("SendTo = %q, %v", sid, err)
	}
	if form.Get("To") != "whatsapp:+15552223333" {
		t.Errorf("recipient should not be double prefixed: %q", form.Get("To"))
	}
}

func TestWhatsAppErrors(t *testing.T) {
	if _, err := NewWhatsApp(WhatsAppConfig{AccountSID: "AC123"}); !errors.Is(err, ErrWhatsAppNotConfigured) {
		t.Errorf("expected ErrWhatsAppNotConfigured, got %v", err)
	}

	srv := twilioServer(t, http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`, nil)
	wa, err := NewWhatsApp(WhatsAppConfig{AccountSID: "AC123", AuthToken: "token", From: "whatsapp:+1", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if wa.Send(context.Background(), "no recipient") {
		t.Error("Send without a default recipient should fail")
	}
	_, err = wa.SendTo(context.Background(), "+1", "x")
	if err == nil || !strings.Contains(err.Error(), "21211") {
		t.Errorf("expected twilio error details, got %v", err)
	}
}

type fakeProcess struct {
	pid int
	exe string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.exe }

func setupTray(t *testing.T, exe string) (dir string, received *trayPayload) {
	t.Helper()
	configDir := t.TempDir()
	origDir, origFind, origURL := userConfigDirFunc, findProcessFunc, trayBaseURL
	t.Cleanup(func() { userConfigDirFunc, findProcessFunc, trayBaseURL = origDir, origFind, origURL })

	userConfigDirFunc = func() (string, error) { return configDir, nil }
	findProcessFunc = func(pid int) (ps.Process, error) {
		if exe == "" {
			return nil, nil
		}
		return fakeProcess{pid: pid, exe: exe}, nil
	}

	received = &trayPayload{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Habitenforcer-Secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(received); err != nil {
			t.Error(err)
		}
	}))
	t.Cleanup(srv.Close)
	trayBaseURL = func(int) string { return srv.URL }

	dir = filepath.Join(configDir, constants.TrayAppIdentifier)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir, received
}

func writeLock(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, constants.NotifierLockfileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestTrayNotify(t *testing.T) {
	dir, received := setupTray(t, constants.TrayExecutablePrefix)
	writeLock(t, dir, "4242|"+strconv.Itoa(os.Getpid())+"|s3cret\n")

	if !NewTray().Send(context.Background(), "strike!") {
		t.Fatal("tray send should succeed")
	}
	if received.Text != "strike!" || received.DurationMs != constants.NotificationDurationMs {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestTrayLockfileErrors(t *testing.T) {
	tests := []struct {
		name string
		exe  string
		lock string
	}{
		{name: "missing lockfile", exe: constants.TrayExecutablePrefix},
		{name: "malformed", exe: constants.TrayExecutablePrefix, lock: "4242|1"},
		{name: "bad port", exe: constants.TrayExecutablePrefix, lock: "99999|1|s"},
		{name: "empty secret", exe: constants.TrayExecutablePrefix, lock: "4242|1| "},
		{name: "process gone", lock: "4242|1|s3cret"},
		{name: "wrong process", exe: "bash", lock: "4242|1|s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _ := setupTray(t, tt.exe)
			if tt.lock != "" {
				writeLock(t, dir, tt.lock)
			}
			if err := NewTray().Notify(context.Background(), "x"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTrayConfigDirOverride(t *testing.T) {
	dir, _ := setupTray(t, constants.TrayExecutablePrefix)
	override := t.TempDir()
	settings := fmt.Sprintf(`{"settings":{"lockfile_dir":%q}}`, override)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(settings), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := TrayConfigDir()
	if err != nil || got != override {
		t.Errorf("TrayConfigDir = %q, %v; want %q", got, err, override)
	}
}
