package trainer

import (
	"sort"

	"github.com/samuelfneumann/offlinerl/utils/floatutils"
)

// Info is a record of diagnostics of an update, keyed by name
type Info map[string]float64

// Mean returns the unweighted mean of each diagnostic over infos. The
// keys of the first record are averaged. The mean of no records is an
// empty record.
func Mean(infos []Info) Info {
	mean := make(Info)
	if len(infos) == 0 {
		return mean
	}

	for key := range infos[0] {
		var sum float64
		for _, info := range infos {
			sum += info[key]
		}
		mean[key] = sum / float64(len(infos))
	}
	return mean
}

// Update adds the diagnostics of other to the record, overwriting
// diagnostics with the same names
func (i Info) Update(other Info) {
	for key, value := range other {
		i[key] = value
	}
}

// Keys returns the names of the diagnostics in sorted order
func (i Info) Keys() []string {
	keys := make([]string, 0, len(i))
	for key := range i {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// summarize adds the mean, minimum, maximum, and standard deviation of
// values to the record under the given name
func (i Info) summarize(name string, values []float64, std bool) {
	s := floatutils.Summarize(values)
	i[name+".mean"] = s.Mean
	i[name+".min"] = s.Min
	i[name+".max"] = s.Max
	if std {
		i[name+".std"] = s.Std
	}
}
