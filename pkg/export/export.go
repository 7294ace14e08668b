// Package export writes synthetic training records as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/railflow/core/model"
)

// Formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Header lists the CSV columns in output order.
var Header = []string{
	"train_id", "category", "station", "station_type", "speed", "occupancy",
	"signal_status", "delay", "distance_to_next", "distance_to_destination",
	"time_to_clear", "hour_of_day", "day_of_week", "lat", "lon", "congestion",
}

// Write encodes recs in the given format.
func Write(w io.Writer, format string, recs []model.LabeledRecord) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []model.LabeledRecord) error {
	if recs == nil {
		recs = []model.LabeledRecord{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(recs)
}

// WriteCSV writes the records to w in CSV format. The signal column holds
// the numeric feature code.
func WriteCSV(w io.Writer, recs []model.LabeledRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range recs {
		rec := []string{
			r.ID,
			string(r.Category),
			r.Station,
			string(r.StationClass),
			f(r.Speed),
			strconv.Itoa(r.Occupancy),
			strconv.Itoa(int(r.Signal)),
			f(r.Delay),
			f(r.DistanceToNext),
			f(r.DistanceToDestination),
			f(r.TimeToClear),
			strconv.Itoa(r.HourOfDay),
			strconv.Itoa(r.DayOfWeek),
			f(r.Lat),
			f(r.Lon),
			strconv.Itoa(r.Congestion),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
