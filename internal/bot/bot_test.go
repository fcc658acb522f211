package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
)

type fakeTelegram struct {
	mu         sync.Mutex
	started    chan struct{}
	webhook    *tgbot.SetWebhookParams
	deleted    int
	webhookErr error
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{started: make(chan struct{})}
}

func (f *fakeTelegram) Start(ctx context.Context) {
	close(f.started)
	<-ctx.Done()
}

func (f *fakeTelegram) SetWebhook(_ context.Context, params *tgbot.SetWebhookParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhook = params
	return f.webhookErr == nil, f.webhookErr
}

func (f *fakeTelegram) DeleteWebhook(context.Context, *tgbot.DeleteWebhookParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return true, nil
}

type fakeServer struct {
	err     error
	started chan struct{}
}

func (s *fakeServer) Run(ctx context.Context) error {
	close(s.started)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(quietLogger(), &config.SchedulerConfig{}, map[string]tasks.ScheduledTaskFunc{})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func runBot(t *testing.T, b *Bot) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return cancel, done
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s never started", what)
	}
}

func TestRunPolling(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Telegram.Mode = config.ModePolling
	tg := newFakeTelegram()
	srv := &fakeServer{started: make(chan struct{})}

	cancel, done := runBot(t, NewBot(quietLogger(), cfg, tg, newTestScheduler(t), srv))
	waitClosed(t, tg.started, "polling")
	waitClosed(t, srv.started, "api server")
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tg.deleted != 1 || tg.webhook != nil {
		t.Fatalf("deleted=%d webhook=%+v", tg.deleted, tg.webhook)
	}
}

func TestRunWebhook(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Telegram.Mode = config.ModeWebhook
	cfg.Telegram.WebhookURL = "https://bot.example.com/"
	cfg.Telegram.WebhookToken = "tok"
	cfg.Telegram.WebhookSecret = "sec"
	tg := newFakeTelegram()
	srv := &fakeServer{started: make(chan struct{})}

	cancel, done := runBot(t, NewBot(quietLogger(), cfg, tg, newTestScheduler(t), srv))
	waitClosed(t, srv.started, "api server")
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tg.webhook == nil || tg.webhook.URL != "https://bot.example.com/webhook/tok" || tg.webhook.SecretToken != "sec" {
		t.Fatalf("webhook = %+v", tg.webhook)
	}
	select {
	case <-tg.started:
		t.Fatal("polling must not start in webhook mode")
	default:
	}
}

func TestRunWebhookRegistrationFailure(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Telegram.Mode = config.ModeWebhook
	tg := newFakeTelegram()
	tg.webhookErr = errors.New("bad url")

	err := NewBot(quietLogger(), cfg, tg, newTestScheduler(t), nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunServerFailureStopsBot(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	srv := &fakeServer{started: make(chan struct{}), err: errors.New("address in use")}
	tg := newFakeTelegram()

	_, done := runBot(t, NewBot(quietLogger(), cfg, tg, newTestScheduler(t), srv))
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected server error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
}
