package train

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/deepgo/internal/net"
	"github.com/FlavioCFOliveira/deepgo/internal/opt"
)

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := config()
	cfg.MaxEpochs = 4
	cfg.MaxError = 0
	tr, err := New(xorNetwork(t), cfg)
	require.NoError(t, err)
	tr.AddListener(NewLogListener(logger, 2))

	_, err = tr.Train(context.Background(), xorSet(t, 4), nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "training started")
	assert.Equal(t, 2, strings.Count(out, "epoch finished"))
	assert.Contains(t, out, "reason=max_epochs")
	assert.NotContains(t, out, "test_loss")
}

func TestCSVLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config()
	cfg.MaxEpochs = 2
	cfg.MaxError = 0
	tr, err := New(xorNetwork(t), cfg)
	require.NoError(t, err)

	csvLog := NewCSVLogger(&buf)
	tr.AddListener(csvLog)
	_, err = tr.Train(context.Background(), xorSet(t, 4), xorSet(t, 4))
	require.NoError(t, err)
	require.NoError(t, csvLog.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "epoch,loss,test_loss,test_accuracy,learning_rate,time_seconds", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))
	assert.Len(t, strings.Split(lines[2], ","), 6)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVLoggerKeepsFirstError(t *testing.T) {
	c := NewCSVLogger(failingWriter{})
	c.HandleEvent(Event{Kind: TrainingStarted})
	assert.Error(t, c.Err())
}

type countingSaver struct {
	files []string
	err   error
}

func (s *countingSaver) Save(filename string) error {
	if s.err != nil {
		return s.err
	}
	s.files = append(s.files, filename)
	return nil
}

func epochEvent(epoch int, lossValue float64) Event {
	return Event{Kind: EpochFinished, Epoch: epoch, Loss: lossValue, TestLoss: math.NaN(), TestAccuracy: math.NaN()}
}

func TestCheckpointSavesOnImprovement(t *testing.T) {
	s := &countingSaver{}
	c := NewCheckpoint(s, "best.gob", nil)

	c.HandleEvent(Event{Kind: TrainingStarted})
	c.HandleEvent(epochEvent(1, 1.0))
	c.HandleEvent(epochEvent(2, 0.5))
	c.HandleEvent(epochEvent(3, 0.7))

	assert.Equal(t, 2, c.Saves())
	assert.Equal(t, 0.5, c.Best())
	assert.Equal(t, []string{"best.gob", "best.gob"}, s.files)
	assert.NoError(t, c.Err())
}

func TestCheckpointPrefersTestLoss(t *testing.T) {
	s := &countingSaver{}
	c := NewCheckpoint(s, "best.gob", nil)

	c.HandleEvent(Event{Kind: EpochFinished, Loss: 0.1, TestLoss: 0.9})
	c.HandleEvent(Event{Kind: EpochFinished, Loss: 0.05, TestLoss: 1.2})
	assert.Equal(t, 1, c.Saves())
	assert.Equal(t, 0.9, c.Best())
}

func TestCheckpointSaveError(t *testing.T) {
	var buf bytes.Buffer
	s := &countingSaver{err: errors.New("read-only")}
	c := NewCheckpoint(s, "best.gob", slog.New(slog.NewTextHandler(&buf, nil)))

	c.HandleEvent(epochEvent(1, 1.0))
	assert.Error(t, c.Err())
	assert.Equal(t, 0, c.Saves())
	assert.True(t, math.IsInf(c.Best(), 1))
	assert.Contains(t, buf.String(), "checkpoint failed")
}

func TestCheckpointWritesLoadableNetwork(t *testing.T) {
	n := xorNetwork(t)
	filename := filepath.Join(t.TempDir(), "xor.gob")

	cfg := config()
	cfg.MaxEpochs = 3
	cfg.MaxError = 0
	tr, err := New(n, cfg)
	require.NoError(t, err)
	c := NewCheckpoint(n, filename, nil)
	tr.AddListener(c)

	_, err = tr.Train(context.Background(), xorSet(t, 4), nil)
	require.NoError(t, err)
	require.Greater(t, c.Saves(), 0)

	loaded, err := net.Load(filename)
	require.NoError(t, err)
	assert.Equal(t, n.InputSize(), loaded.InputSize())
}

func TestScheduleListener(t *testing.T) {
	n := xorNetwork(t)
	cfg := config()
	cfg.LearningRate = 0.5
	cfg.MaxEpochs = 3
	cfg.MaxError = 0
	tr, err := New(n, cfg)
	require.NoError(t, err)

	var rates []float64
	tr.AddListener(NewScheduleListener(tr, opt.StepDecay{StepSize: 1, Gamma: 0.5}))
	tr.AddListener(ListenerFunc(func(e Event) {
		if e.Kind == IterationFinished && e.Iteration%4 == 1 {
			rates = append(rates, e.LearningRate)
		}
	}))

	_, err = tr.Train(context.Background(), xorSet(t, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0.125}, rates)
	assert.Equal(t, 0.0625, tr.LearningRate())
	assert.Equal(t, 0.0625, n.TrainingConfig().Optimizer.LearningRate())
}

func TestScheduleListenerKeepsRejectedRate(t *testing.T) {
	tr, err := New(xorNetwork(t), config())
	require.NoError(t, err)
	s := NewScheduleListener(tr, opt.ExponentialDecay{Gamma: 0})

	s.HandleEvent(epochEvent(1, 1))
	assert.ErrorIs(t, s.Err(), ErrInvalidConfig)
	assert.Equal(t, 0.01, tr.LearningRate())
}
