package repository

import (
	"strings"

	"SignalDesk/internal/domain/models"
)

// Datasets is the set of tables the upstream accepts.
type Datasets struct {
	supported []models.Dataset
	def       models.Dataset
}

// NewDatasets builds the registry. An empty or unknown def falls back to the first supported dataset.
func NewDatasets(supported []string, def string) Datasets {
	d := Datasets{}
	seen := make(map[models.Dataset]bool, len(supported))
	for _, s := range supported {
		ds := models.Dataset(strings.ToLower(strings.TrimSpace(s)))
		if ds == "" || seen[ds] {
			continue
		}
		seen[ds] = true
		d.supported = append(d.supported, ds)
	}
	d.def = models.Dataset(strings.ToLower(strings.TrimSpace(def)))
	if !d.IsSupported(d.def) && len(d.supported) > 0 {
		d.def = d.supported[0]
	}
	return d
}

// IsSupported returns true if ds is a supported dataset.
func (d Datasets) IsSupported(ds models.Dataset) bool {
	for _, s := range d.supported {
		if s == ds {
			return true
		}
	}
	return false
}

// Default returns the default dataset.
func (d Datasets) Default() models.Dataset { return d.def }

// All returns the supported datasets in configured order.
func (d Datasets) All() []models.Dataset {
	out := make([]models.Dataset, len(d.supported))
	copy(out, d.supported)
	return out
}

// Resolve converts a raw table name to a dataset. Empty input yields the default.
func (d Datasets) Resolve(s string) (models.Dataset, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return d.def, d.def != ""
	}
	ds := models.Dataset(s)
	return ds, d.IsSupported(ds)
}
