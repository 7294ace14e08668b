package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/core/model"
)

func fixedNow() time.Time {
	// Wednesday
	return time.Date(2024, 3, 13, 8, 30, 0, 0, time.UTC)
}

func newTestIngester() *Ingester {
	p := DefaultPolicy()
	p.Now = fixedNow
	return NewIngester(p)
}

func ptr[T any](v T) *T { return &v }

func TestIngestBackfillsOptionalFields(t *testing.T) {
	in := newTestIngester()
	recs, err := in.Ingest([]model.RawTrain{{Number: "12301", Category: "vande", Speed: ptr(15.0)}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "12301", r.ID)
	assert.Equal(t, model.CategoryHighSpeed, r.Category)
	assert.Equal(t, "HWH", r.Station)
	assert.Equal(t, model.StationMajor, r.StationClass)
	assert.Equal(t, 3, r.Occupancy)
	assert.Equal(t, model.SignalYellow, r.Signal)
	assert.Equal(t, 0.0, r.Delay)
	assert.Greater(t, r.DistanceToNext, 0.0)
	assert.Greater(t, r.DistanceToDestination, 0.0)
	assert.InDelta(t, r.DistanceToNext/16, r.TimeToClear, 1e-9)
	assert.Equal(t, 8, r.HourOfDay)
	assert.Equal(t, 2, r.DayOfWeek)
}

func TestIngestKeepsProvidedFields(t *testing.T) {
	in := newTestIngester()
	sig := model.SignalRed
	raw := model.RawTrain{
		ID:                    "T1",
		Speed:                 ptr(50.0),
		Delay:                 ptr(4.0),
		Station:               ptr("BWN"),
		Occupancy:             ptr(4.0),
		SignalStatus:          &sig,
		DistanceToNext:        ptr(1000.0),
		DistanceToDestination: ptr(2000.0),
		HourOfDay:             ptr(23.0),
		DayOfWeek:             ptr(6.0),
	}
	recs, err := in.Ingest([]model.RawTrain{raw})
	require.NoError(t, err)
	r := recs[0]
	assert.Equal(t, model.StationJunction, r.StationClass)
	assert.Equal(t, 4, r.Occupancy)
	assert.Equal(t, model.SignalRed, r.Signal)
	assert.Equal(t, 1000.0, r.DistanceToNext)
	assert.InDelta(t, 1000.0/51, r.TimeToClear, 1e-9)
	assert.Equal(t, 23, r.HourOfDay)
	assert.Equal(t, 6, r.DayOfWeek)
}

func TestIngestDefaults(t *testing.T) {
	tests := []struct {
		name   string
		speed  float64
		delay  float64
		occ    int
		signal model.SignalState
	}{
		{"stopped", 0, 0, 3, model.SignalRed},
		{"slow", 25, 0, 2, model.SignalYellow},
		{"late", 60, 25, 1, model.SignalRed},
		{"slightly late", 60, 15, 1, model.SignalYellow},
		{"cruising", 60, 0, 1, model.SignalGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := newTestIngester().Ingest([]model.RawTrain{{Speed: ptr(tt.speed), Delay: ptr(tt.delay)}})
			require.NoError(t, err)
			assert.Equal(t, tt.occ, recs[0].Occupancy)
			assert.Equal(t, tt.signal, recs[0].Signal)
			assert.Equal(t, "TRAIN_0", recs[0].ID)
		})
	}
}

func TestIngestStoppedTrainDistance(t *testing.T) {
	recs, err := newTestIngester().Ingest([]model.RawTrain{{ID: "x", Speed: ptr(0.0)}})
	require.NoError(t, err)
	assert.Equal(t, 10000.0, recs[0].DistanceToNext)
	assert.Equal(t, 10000.0, recs[0].TimeToClear)
}

func TestIngestDeterministic(t *testing.T) {
	raws := []model.RawTrain{{Speed: ptr(40.0)}, {Speed: ptr(70.0)}}
	a, err := newTestIngester().Ingest(raws)
	require.NoError(t, err)
	b, err := newTestIngester().Ingest(raws)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIngestMissingSpeed(t *testing.T) {
	_, err := newTestIngester().Ingest([]model.RawTrain{{Speed: ptr(10.0)}, {ID: "bad"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, "speed", se.Field)
}

func TestIngestNegativeSpeed(t *testing.T) {
	_, err := newTestIngester().Ingest([]model.RawTrain{{Speed: ptr(-1.0)}})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestOptionalFieldsOrder(t *testing.T) {
	assert.Equal(t, []string{
		"station", "station_type", "occupancy", "signal_status",
		"distance_to_next", "distance_to_destination", "time_to_clear",
		"hour_of_day", "day_of_week",
	}, OptionalFields())
}

func TestDecodeTrains(t *testing.T) {
	data := []byte(`[
		{"id":"A","speed":40,"delay":3,"signal_status":"red","lat":22.5,"lon":88.3},
		{"number":12345,"speed":60,"occupancy":"lots","signal_status":7}
	]`)
	raws, err := DecodeTrains(data)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.NotNil(t, raws[0].SignalStatus)
	assert.Equal(t, model.SignalRed, *raws[0].SignalStatus)
	assert.Equal(t, "12345", raws[1].Identifier())
	assert.Nil(t, raws[1].Occupancy)
	assert.Nil(t, raws[1].SignalStatus)
}

func TestDecodeTrainsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		index int
		field string
	}{
		{"speed text", `[{"speed":10},{"speed":"fast"}]`, 1, "speed"},
		{"not object", `[{"speed":10},{"speed":10},3]`, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTrains([]byte(tt.input))
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.index, se.Index)
			assert.Equal(t, tt.field, se.Field)
		})
	}
	_, err := DecodeTrains([]byte(`{"trains":[]}`))
	assert.Error(t, err)
}

func TestEncoderStableAcrossBatches(t *testing.T) {
	train := []model.TrainRecord{
		{Category: model.CategoryPassenger, StationClass: model.StationMajor},
		{Category: model.CategoryFreight, StationClass: model.StationYard},
		{Category: model.CategoryExpress, StationClass: model.StationJunction},
		{Category: model.CategoryHighSpeed, StationClass: model.StationSuburban},
	}
	enc := FitEncoder(train)
	assert.Equal(t, map[string]int{"express": 0, "freight": 1, "high-speed": 2, "passenger": 3}, enc.Category)
	assert.Equal(t, map[string]int{"junction": 0, "major": 1, "suburban": 2, "yard": 3}, enc.StationClass)

	eng := &Engineer{Encoder: enc, Names: Names()}
	single, err := eng.Transform([]model.TrainRecord{{Category: model.CategoryFreight}})
	require.NoError(t, err)
	mixed, err := eng.Transform([]model.TrainRecord{{Category: model.CategoryPassenger}, {Category: model.CategoryFreight}})
	require.NoError(t, err)
	assert.Equal(t, single[0][9], mixed[1][9])
	assert.Equal(t, 1.0, single[0][9])
}

func TestEncoderUnknown(t *testing.T) {
	enc := FitEncoder([]model.TrainRecord{{Category: model.CategoryPassenger, StationClass: model.StationMajor}})
	assert.Equal(t, UnknownCode, enc.CategoryCode("maglev"))
	assert.Equal(t, UnknownCode, enc.StationClassCode(model.StationFreight))
}

func TestFitTransform(t *testing.T) {
	recs := []model.LabeledRecord{
		{TrainRecord: model.TrainRecord{Speed: 20, Occupancy: 3, Signal: model.SignalRed, Delay: 42, HourOfDay: 8, DayOfWeek: 5, Category: model.CategoryFreight}, Congestion: 1},
		{TrainRecord: model.TrainRecord{Speed: 99, Occupancy: 0, Signal: model.SignalGreen, HourOfDay: 12, DayOfWeek: 1, Category: model.CategoryExpress}, Congestion: 0},
	}
	eng, rows, labels := FitTransform(recs)
	assert.Equal(t, Names(), eng.Names)
	assert.Equal(t, []int{1, 0}, labels)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(Names()))
	assert.Equal(t, 20.0, rows[0][0])
	assert.Equal(t, 5.0, rows[0][11])
	assert.Equal(t, 2.0, rows[0][12])
	assert.Equal(t, 1.0, rows[0][13])
	assert.Equal(t, 1.0, rows[0][14])
	assert.Equal(t, 0.0, rows[1][13])
	assert.Equal(t, 0.0, rows[1][14])
}

func TestTransformFollowsPersistedOrder(t *testing.T) {
	eng := &Engineer{Names: []string{"delay", "speed"}}
	rows, err := eng.Transform([]model.TrainRecord{{Speed: 10, Delay: 3}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 10}}, rows)

	eng.Names = []string{"speed", "colour"}
	_, err = eng.Transform([]model.TrainRecord{{}})
	assert.Error(t, err)
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, 0, Weekday(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, Weekday(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)))
}

func TestNamesReturnsCopy(t *testing.T) {
	names := Names()
	names[0] = "colour"
	assert.Equal(t, "speed", Names()[0])
	assert.Len(t, Names(), 15)
}
