package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/core/model"
)

type panicPredictor struct{}

func (panicPredictor) PredictRaw([]model.RawTrain, string) (model.ResultEnvelope, error) {
	panic("corrupt forest")
}

func TestPredictJSON(t *testing.T) {
	orch, _, clock := loaded(t, nil)
	now := clock.Now

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"blank", "  \n", MsgNoData},
		{"empty array", "[]", MsgEmpty},
		{"null", "null", MsgEmpty},
		{"not json", "{trains", MsgPredictionFailed},
		{"missing speed", `[{"id":"T1"}]`, MsgPredictionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := PredictJSON(orch, []byte(tt.input), now)
			require.False(t, res.OK())
			assert.Equal(t, tt.wantErr, res.Error.Error)
			assert.Equal(t, clock.Now(), res.Error.Timestamp)
		})
	}

	res := PredictJSON(orch, []byte(`[{"id":"T1","speed":15,"delay":25,"occupancy":3,"signal_status":"red"},{"number":"12301","speed":80}]`), now)
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Envelope.TotalTrains)
	assert.Equal(t, model.SourceInput, res.Envelope.Source)
	data, err := json.Marshal(res.Value())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
}

func TestPredictJSONDetails(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	res := PredictJSON(orch, []byte(`[{"id":"T1","speed":"fast"}]`), nil)
	require.False(t, res.OK())
	assert.Contains(t, res.Error.Details, "speed")

	data, err := json.Marshal(res.Value())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MsgPredictionFailed, out["error"])
	assert.Contains(t, out, "timestamp")
}

func TestPredictJSONRecoversPanics(t *testing.T) {
	res := PredictJSON(panicPredictor{}, []byte(`[{"id":"T1","speed":10}]`), time.Now)
	require.False(t, res.OK())
	assert.Equal(t, MsgPredictionFailed, res.Error.Error)
	assert.Contains(t, res.Error.Details, "corrupt forest")
}

func TestPredictReader(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	res := PredictReader(orch, strings.NewReader(`[{"id":"T9","speed":50}]`), nil)
	require.True(t, res.OK())
	assert.Equal(t, 1, res.Envelope.TotalTrains)

	big := strings.NewReader(strings.Repeat(" ", MaxInputBytes+1))
	res = PredictReader(orch, big, nil)
	require.False(t, res.OK())
	assert.Contains(t, res.Error.Details, "exceeds")
}

func TestPredictReaderUsesClock(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	at := time.Date(2024, 3, 13, 8, 30, 0, 0, time.UTC)
	now := func() time.Time { return at }

	res := PredictReader(orch, strings.NewReader(strings.Repeat(" ", MaxInputBytes+1)), now)
	require.False(t, res.OK())
	assert.Equal(t, at, res.Error.Timestamp)

	res = PredictReader(orch, iotest.ErrReader(errors.New("stdin closed")), now)
	require.False(t, res.OK())
	assert.Equal(t, at, res.Error.Timestamp)
	assert.Contains(t, res.Error.Details, "stdin closed")
}

func TestResultInputError(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	assert.True(t, PredictJSON(orch, []byte(""), nil).InputError())
	assert.True(t, PredictJSON(orch, []byte("[]"), nil).InputError())
	assert.True(t, PredictJSON(orch, []byte("{"), nil).InputError())
	assert.True(t, PredictJSON(orch, []byte(`[{"id":"T1"}]`), nil).InputError())
	assert.False(t, PredictJSON(panicPredictor{}, []byte(`[{"id":"T1","speed":10}]`), nil).InputError())
	assert.False(t, PredictJSON(orch, []byte(`[{"id":"T1","speed":10}]`), nil).InputError())
}
