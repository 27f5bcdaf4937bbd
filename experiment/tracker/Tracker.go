// Package tracker implements Trackers, which track and save the
// diagnostics of the updates of an experiment
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/offlinerl/trainer"
)

// Interface Tracker keeps track of experiment data and saves the data
// after the experiment has finished
type Tracker interface {
	Track(step int, info trainer.Info)
	Save() error
}

// Info tracks the full diagnostics record of every update in an
// experiment
type Info struct {
	infos    []trainer.Info
	filename string
}

// NewInfo returns a new Info Tracker which saves its data at filename
func NewInfo(filename string) *Info {
	return &Info{filename: filename}
}

// Track caches the diagnostics of an update
func (i *Info) Track(_ int, info trainer.Info) {
	record := make(trainer.Info, len(info))
	record.Update(info)
	i.infos = append(i.infos, record)
}

// Len returns the number of updates tracked
func (i *Info) Len() int {
	return len(i.infos)
}

// Save saves the data tracked by the Info Tracker to disk
func (i *Info) Save() error {
	return save(i.filename, i.infos)
}

// Diagnostic tracks a single diagnostic, such as "q1.loss", over the
// updates of an experiment. Updates which do not report the diagnostic
// are skipped.
type Diagnostic struct {
	key      string
	steps    []int
	values   []float64
	filename string
}

// NewDiagnostic returns a new Diagnostic Tracker for the diagnostic
// named key which saves its data at filename
func NewDiagnostic(key, filename string) *Diagnostic {
	return &Diagnostic{key: key, filename: filename}
}

// Track caches the diagnostic of an update
func (d *Diagnostic) Track(step int, info trainer.Info) {
	value, ok := info[d.key]
	if !ok {
		return
	}
	d.steps = append(d.steps, step)
	d.values = append(d.values, value)
}

// Steps returns the updates the diagnostic was tracked on
func (d *Diagnostic) Steps() []int {
	return append([]int(nil), d.steps...)
}

// Save saves the data tracked by the Diagnostic Tracker to disk
func (d *Diagnostic) Save() error {
	return save(d.filename, d.values)
}

// save gob encodes data to filename
func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return file.Close()
}

// load gob decodes the data in filename into data
func load(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("could not decode data: %v", err)
	}
	return nil
}

// LoadData loads and returns the data saved by a Diagnostic Tracker
func LoadData(filename string) ([]float64, error) {
	var data []float64
	if err := load(filename, &data); err != nil {
		return nil, fmt.Errorf("loadData: %v", err)
	}
	return data, nil
}

// LoadInfo loads and returns the data saved by an Info Tracker
func LoadInfo(filename string) ([]trainer.Info, error) {
	var infos []trainer.Info
	if err := load(filename, &infos); err != nil {
		return nil, fmt.Errorf("loadInfo: %v", err)
	}
	return infos, nil
}
