// Package data provides file-keyed event sample storage. The engine core
// consumes it through plain ReadEvents/WriteEvents calls; nothing in pwa
// depends on the container format.
package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pwafit/pwafit/pwa"
)

// csvHeader is the column layout: one row per particle, grouped by event
// index. The weight is carried on every row of its event.
var csvHeader = []string{"event", "pid", "px", "py", "pz", "e", "weight"}

// WriteEvents saves an event sample as CSV to the given path.
func WriteEvents(path string, events pwa.EventList) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	for i, ev := range events {
		for _, p := range ev.Particles {
			row := []string{
				strconv.Itoa(i),
				strconv.Itoa(p.PID),
				strconv.FormatFloat(p.P4.Px(), 'g', -1, 64),
				strconv.FormatFloat(p.P4.Py(), 'g', -1, 64),
				strconv.FormatFloat(p.P4.Pz(), 'g', -1, 64),
				strconv.FormatFloat(p.P4.E(), 'g', -1, 64),
				strconv.FormatFloat(ev.Weight, 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("writing events: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

// ReadEvents loads an event sample previously written by WriteEvents.
func ReadEvents(path string) (pwa.EventList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading events: %q is empty", path)
	}
	if len(records[0]) != len(csvHeader) || records[0][0] != "event" {
		return nil, fmt.Errorf("reading events: %q has unexpected header %v", path, records[0])
	}

	var events pwa.EventList
	current := -1
	for line, rec := range records[1:] {
		fields, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("reading events: line %d: %w", line+2, err)
		}
		if fields.event != current {
			if fields.event != current+1 {
				return nil, fmt.Errorf("reading events: line %d: event index %d not contiguous", line+2, fields.event)
			}
			current = fields.event
			events = append(events, pwa.Event{Weight: fields.weight})
		}
		ev := &events[len(events)-1]
		ev.Particles = append(ev.Particles, pwa.NewParticle(fields.px, fields.py, fields.pz, fields.e, fields.pid))
	}
	return events, nil
}

type eventRow struct {
	event, pid    int
	px, py, pz, e float64
	weight        float64
}

func parseRow(rec []string) (eventRow, error) {
	if len(rec) != len(csvHeader) {
		return eventRow{}, fmt.Errorf("got %d fields, want %d", len(rec), len(csvHeader))
	}
	var row eventRow
	var err error
	if row.event, err = strconv.Atoi(rec[0]); err != nil {
		return eventRow{}, fmt.Errorf("event index: %w", err)
	}
	if row.pid, err = strconv.Atoi(rec[1]); err != nil {
		return eventRow{}, fmt.Errorf("pid: %w", err)
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		if vals[i], err = strconv.ParseFloat(rec[i+2], 64); err != nil {
			return eventRow{}, fmt.Errorf("%s: %w", csvHeader[i+2], err)
		}
	}
	row.px, row.py, row.pz, row.e, row.weight = vals[0], vals[1], vals[2], vals[3], vals[4]
	return row, nil
}
