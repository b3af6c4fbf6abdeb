package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func noopJob(context.Context) {}

func TestStartRejectsInvalidExpression(t *testing.T) {
	sched := NewScheduler(noopJob, zerolog.Nop())

	err := sched.Start("not a cron expression")
	if !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("非法表达式应返回 ErrInvalidExpression, 实际 %v", err)
	}
	if status := sched.Status(); status.Enabled {
		t.Fatal("启动失败后不应有活动任务")
	}
}

func TestStartReplacesPreviousJob(t *testing.T) {
	sched := NewScheduler(noopJob, zerolog.Nop())
	defer sched.Stop()

	if err := sched.Start("* * * * *"); err != nil {
		t.Fatalf("首次启动应成功: %v", err)
	}
	if err := sched.Start("*/5 * * * *"); err != nil {
		t.Fatalf("二次启动应成功: %v", err)
	}

	status := sched.Status()
	if !status.Enabled {
		t.Fatal("应存在一个活动任务")
	}
	if status.Expression != "*/5 * * * *" {
		t.Fatalf("表达式应为最后一次启动的值, 实际 %q", status.Expression)
	}
}

func TestStartInvalidExpressionStopsPreviousJob(t *testing.T) {
	sched := NewScheduler(noopJob, zerolog.Nop())
	defer sched.Stop()

	if err := sched.Start("* * * * *"); err != nil {
		t.Fatalf("首次启动应成功: %v", err)
	}

	// The old job is stopped before the new expression is validated, so a
	// bad reconfigure never leaves a stale schedule running.
	if err := sched.Start("bad expression"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("非法表达式应返回 ErrInvalidExpression, 实际 %v", err)
	}
	if status := sched.Status(); status.Enabled {
		t.Fatal("非法表达式重配置后原任务应已停止")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sched := NewScheduler(noopJob, zerolog.Nop())

	// Stop on a stopped scheduler is a no-op.
	sched.Stop()

	if err := sched.Start("* * * * *"); err != nil {
		t.Fatalf("启动应成功: %v", err)
	}
	sched.Stop()
	sched.Stop()

	status := sched.Status()
	if status.Enabled {
		t.Fatal("停止后不应有活动任务")
	}
	if status.Expression != "" {
		t.Fatalf("停止后表达式应为空, 实际 %q", status.Expression)
	}
}

func TestStartTrimsExpression(t *testing.T) {
	sched := NewScheduler(noopJob, zerolog.Nop())
	defer sched.Stop()

	if err := sched.Start("  * * * * *  "); err != nil {
		t.Fatalf("带空白的表达式应可启动: %v", err)
	}
	if status := sched.Status(); status.Expression != "* * * * *" {
		t.Fatalf("表达式应被裁剪, 实际 %q", status.Expression)
	}
}
