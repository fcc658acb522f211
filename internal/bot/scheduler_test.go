package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.TaskConfig
		schedule string
		wantErr  bool
	}{
		{name: "interval", cfg: config.TaskConfig{Interval: time.Minute}, schedule: "every 1m0s"},
		{name: "interval wins", cfg: config.TaskConfig{Interval: time.Minute, Schedule: "0 0 4 * * *"}, schedule: "every 1m0s"},
		{name: "cron", cfg: config.TaskConfig{Schedule: "0 0 4 * * *"}, schedule: "0 0 4 * * *"},
		{name: "nothing", cfg: config.TaskConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, schedule, err := jobDefinition(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || def == nil || schedule != tt.schedule {
				t.Fatalf("def=%v schedule=%q err=%v", def, schedule, err)
			}
		})
	}
}

func TestSchedulerRunsEnabledTasks(t *testing.T) {
	t.Parallel()

	var enabledRuns, disabledRuns atomic.Int32
	ran := make(chan struct{}, 1)

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":   {Enabled: true, Interval: 20 * time.Millisecond},
		"disabled":  {Enabled: false, Interval: 20 * time.Millisecond},
		"unknown":   {Enabled: true, Interval: 20 * time.Millisecond},
		"no_timing": {Enabled: true},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled": func(context.Context) error {
			enabledRuns.Add(1)
			select {
			case ran <- struct{}{}:
			default:
			}
			return errors.New("failures are logged, not fatal")
		},
		"disabled":  func(context.Context) error { disabledRuns.Add(1); return nil },
		"no_timing": func(context.Context) error { return nil },
	}

	s, err := NewScheduler(quietLogger(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("enabled task never ran")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if enabledRuns.Load() == 0 || disabledRuns.Load() != 0 {
		t.Fatalf("enabled=%d disabled=%d", enabledRuns.Load(), disabledRuns.Load())
	}
}
