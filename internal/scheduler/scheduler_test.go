package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/scheduler/tasks"
)

func noop(context.Context) error { return nil }

func TestScheduler_StartSchedulesEnabledTasks(t *testing.T) {
	cfg := config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 3 * * 0"},
		"log_retention":   {Enabled: false, Schedule: "0 30 3 * * *"},
		"unknown":         {Enabled: true, Schedule: "0 0 * * * *"},
		"bad_schedule":    {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"sql_maintenance": noop,
		"log_retention":   noop,
		"bad_schedule":    noop,
	}

	s, err := NewScheduler(nil, cfg, taskMap)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })

	assert.ElementsMatch(t, []string{"sql_maintenance"}, s.JobNames())
	assert.Error(t, s.Start(), "second start must fail")
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s, err := NewScheduler(nil, config.SchedulerConfig{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
