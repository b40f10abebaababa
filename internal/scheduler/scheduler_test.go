package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestRegisterTask_DuplicateID(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{
		ID:   "refresh",
		Name: "Catalog refresh",
		Cron: "0 4 * * *",
		Func: func(context.Context) error { return nil },
	}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Fatal("RegisterTask() accepted a duplicate task id")
	}
}

func TestRegisterTask_InvalidCron(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:   "broken",
		Name: "Broken",
		Cron: "not a cron expression",
		Func: func(context.Context) error { return nil },
	})
	if err == nil {
		t.Fatal("RegisterTask() accepted an invalid cron expression")
	}
}

func TestExecuteTask_RunsRegisteredFunc(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 1)
	err := s.RegisterTask(TaskConfig{
		ID:   "refresh",
		Name: "Catalog refresh",
		Cron: "0 4 * * *",
		Func: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	s.executeTask("refresh")

	select {
	case <-ran:
	default:
		t.Fatal("task func was not executed")
	}
}

func TestExecuteTask_SkipsWhileRunning(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	release := make(chan struct{})
	runs := 0
	err := s.RegisterTask(TaskConfig{
		ID:   "refresh",
		Name: "Catalog refresh",
		Cron: "0 4 * * *",
		Func: func(context.Context) error {
			runs++
			close(started)
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.executeTask("refresh")
		close(done)
	}()
	<-started

	// A second trigger while the first run is in flight is a no-op.
	s.executeTask("refresh")

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never finished")
	}
	if runs != 1 {
		t.Errorf("task ran %d times, want 1", runs)
	}
}

func TestStart_RunsOnStartTasks(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:         "refresh",
		Name:       "Catalog refresh",
		Cron:       "0 4 * * *",
		RunOnStart: true,
		Func: func(context.Context) error {
			close(ran)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnStart task never executed")
	}
}

func TestExecuteTask_UnknownID(t *testing.T) {
	s := newTestScheduler(t)

	// Must not panic or block.
	s.executeTask("missing")
}
