package state

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/devknoll/container-query-polyfill/config"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())

	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.start.IsZero() {
		t.Error("environment start time not set")
	}
}

func TestEnvFromContext_MissingEnvPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("EnvFromContext() should panic when env is not in context")
		}
	}()

	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	time.Sleep(10 * time.Millisecond)
	if uptime := env.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	t.Run("with logger", func(t *testing.T) {
		env := &LocalEnv{
			Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
		}

		env.RedirectStdLog()
		if env.restoreStdLog == nil {
			t.Error("expected restoreStdLog to be set")
		}
		env.RestoreStdLog()
	})

	t.Run("without logger", func(t *testing.T) {
		env := &LocalEnv{}

		// Must not panic and must not leave a restore hook behind.
		env.RedirectStdLog()
		if env.restoreStdLog != nil {
			t.Error("expected restoreStdLog to remain nil")
		}
		env.RestoreStdLog()
	})

	t.Run("restore without redirect", func(t *testing.T) {
		env := &LocalEnv{
			Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
		}

		env.RestoreStdLog()
	})

	t.Run("repeated cycles", func(t *testing.T) {
		env := &LocalEnv{
			Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
		}

		for i := range 3 {
			env.RedirectStdLog()
			if env.restoreStdLog == nil {
				t.Errorf("iteration %d: restoreStdLog not set", i)
			}
			env.RestoreStdLog()
		}
	})
}

func TestLocalEnv_RunSetup(t *testing.T) {
	// The shape every subcommand run starts from: env in context, then
	// configuration, logger and run flags attached.
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)

	env.Cfg = &config.Config{Version: 1}
	env.Log = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	env.Rpt = &config.Report{}
	env.NoDirs = true
	env.UserStyle = []byte(".card { container-type: inline-size }")

	env.RedirectStdLog()
	defer env.RestoreStdLog()

	got := EnvFromContext(ctx)
	if got != env {
		t.Error("context must hand back the same environment instance")
	}
	if got.Cfg.Version != 1 || len(got.UserStyle) == 0 || !got.NoDirs {
		t.Error("run flags did not survive the context round trip")
	}
}
