package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskEncodingRoundTrip(t *testing.T) {
	task := &Task{
		ID:       "t-1",
		Type:     TaskTypeGenerate,
		Priority: 2,
		Uploads: []Upload{
			{Key: "uploads/t-1/0_spec.pdf", Name: "spec.pdf"},
			{Key: "uploads/t-1/1_login.png", Name: "login.png"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	at, err := NewAsynqTask(task, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeGenerate, at.Type())

	got, err := DecodeTask(at.Payload())
	require.NoError(t, err)
	assert.Equal(t, task.Uploads, got.Uploads)
	assert.Equal(t, task.CreatedAt, got.CreatedAt)
}

func TestDecodeTaskRejectsIncomplete(t *testing.T) {
	_, err := DecodeTask([]byte(`{"id":"x"}`))
	assert.Error(t, err)
	_, err = DecodeTask([]byte(`not json`))
	assert.Error(t, err)
}

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, QueueCritical, queueFor(1))
	assert.Equal(t, QueueDefault, queueFor(2))
	assert.Equal(t, QueueLow, queueFor(0))
	assert.Equal(t, QueueLow, queueFor(9))
}

func TestConvertAsynqStatus(t *testing.T) {
	done := time.Now()
	cases := []struct {
		state asynq.TaskState
		want  string
	}{
		{asynq.TaskStatePending, "pending"},
		{asynq.TaskStateScheduled, "pending"},
		{asynq.TaskStateActive, "running"},
		{asynq.TaskStateCompleted, "completed"},
		{asynq.TaskStateRetry, "failed"},
		{asynq.TaskStateArchived, "failed"},
	}
	for _, c := range cases {
		st := convertAsynqStatus(&asynq.TaskInfo{ID: "id", State: c.state, LastErr: "boom", CompletedAt: done})
		assert.Equal(t, c.want, st.Status, c.state.String())
	}

	st := convertAsynqStatus(&asynq.TaskInfo{ID: "id", State: asynq.TaskStateRetry, LastErr: "boom"})
	assert.Equal(t, "boom", st.Error)
}

func TestNewAsynqQueueRequiresAddr(t *testing.T) {
	_, err := NewAsynqQueue(Config{})
	assert.Error(t, err)
}
