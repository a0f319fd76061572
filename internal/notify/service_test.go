package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/logging"
)

type fakeSink struct {
	mu    sync.Mutex
	calls []Message
	errs  []error
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(sinks ...Sink) *service {
	return &service{sinks: sinks, logger: logging.NewNop()}
}

func TestDeliverRetriesExactlyOnce(t *testing.T) {
	sink := &fakeSink{errs: []error{errors.New("transient")}}
	svc := newTestService(sink)

	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("retry should recover a single transient failure: %v", err)
	}
	if got := sink.callCount(); got != 2 {
		t.Fatalf("send called %d times, want 2", got)
	}
}

func TestDeliverReportsSecondFailure(t *testing.T) {
	sink := &fakeSink{errs: []error{errors.New("first"), errors.New("second")}}
	svc := newTestService(sink)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("two failures should surface an error")
	}
	if got := sink.callCount(); got != 2 {
		t.Fatalf("send called %d times, want exactly 2 (one retry)", got)
	}
}

func TestDeliverFansOutToAllSinks(t *testing.T) {
	broken := &fakeSink{errs: []error{errors.New("a"), errors.New("b")}}
	healthy := &fakeSink{}
	svc := newTestService(broken, healthy)

	err := svc.NotifyRuleFired(context.Background(), "tidy-downloads", "move", "/home/u/Downloads/x.iso")
	if err == nil {
		t.Fatal("broken sink should be reported")
	}
	if got := healthy.callCount(); got != 1 {
		t.Fatalf("healthy sink called %d times, want 1", got)
	}
}

func TestNewItemMessageShape(t *testing.T) {
	sink := &fakeSink{}
	svc := newTestService(sink)

	if err := svc.NotifyNewItem(context.Background(), "/home/u/Downloads/report.pdf", false); err != nil {
		t.Fatalf("NotifyNewItem: %v", err)
	}
	if err := svc.NotifyNewItem(context.Background(), "/home/u/Downloads/photos", true); err != nil {
		t.Fatalf("NotifyNewItem dir: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls[0].Title != "New file detected" {
		t.Fatalf("file title = %q", sink.calls[0].Title)
	}
	if sink.calls[0].Body != "/home/u/Downloads/report.pdf" {
		t.Fatalf("body = %q", sink.calls[0].Body)
	}
	if sink.calls[1].Title != "New directory detected" {
		t.Fatalf("dir title = %q", sink.calls[1].Title)
	}
}

func TestNtfySinkSendsHeaders(t *testing.T) {
	var mu sync.Mutex
	var gotTitle, gotPriority, gotTags, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := newNtfySink(server.URL, 5*time.Second)
	err := sink.Send(context.Background(), Message{
		Title:    "Housekeeper - Test",
		Body:     "hello",
		Tags:     []string{"housekeeper", "test"},
		Priority: "low",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotTitle != "Housekeeper - Test" {
		t.Fatalf("Title header = %q", gotTitle)
	}
	if gotPriority != "low" {
		t.Fatalf("Priority header = %q", gotPriority)
	}
	if gotTags != "housekeeper,test" {
		t.Fatalf("Tags header = %q", gotTags)
	}
	if gotBody != "hello" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestNtfySinkRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	defer server.Close()

	sink := newNtfySink(server.URL, 5*time.Second)
	if err := sink.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestDesktopSinkBuildsLinuxCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	sink := &desktopSink{
		goos: "linux",
		run: func(_ context.Context, name string, args ...string) error {
			gotName = name
			gotArgs = args
			return nil
		},
	}

	err := sink.Send(context.Background(), Message{Title: "New file detected", Body: "/tmp/x"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotName != "notify-send" {
		t.Fatalf("command = %q, want notify-send", gotName)
	}
	if len(gotArgs) != 4 || gotArgs[2] != "New file detected" || gotArgs[3] != "/tmp/x" {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestDesktopSinkQuotesAppleScript(t *testing.T) {
	var gotArgs []string
	sink := &desktopSink{
		goos: "darwin",
		run: func(_ context.Context, _ string, args ...string) error {
			gotArgs = args
			return nil
		},
	}

	err := sink.Send(context.Background(), Message{Title: `He said "hi"`, Body: `back\slash`})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(gotArgs) != 2 {
		t.Fatalf("args = %v", gotArgs)
	}
	want := `display notification "back\\slash" with title "He said \"hi\""`
	if gotArgs[1] != want {
		t.Fatalf("script = %q, want %q", gotArgs[1], want)
	}
}

func TestDesktopSinkUnsupportedPlatformIsSilent(t *testing.T) {
	sink := &desktopSink{goos: "plan9", run: func(context.Context, string, ...string) error {
		t.Fatal("no command should run on unsupported platforms")
		return nil
	}}
	if err := sink.Send(context.Background(), Message{Body: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestNewServiceDisabledIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = false

	svc := NewService(&cfg, logging.NewNop())
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("disabled notifications should yield noop, got %T", svc)
	}
}

func TestNewServiceNtfyWithoutTopicDropsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = true
	cfg.Notifications.Backends = []string{"ntfy"}
	cfg.Notifications.NtfyTopic = ""

	svc := NewService(&cfg, logging.NewNop())
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("no usable backend should yield noop, got %T", svc)
	}
}
