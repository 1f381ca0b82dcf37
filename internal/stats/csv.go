package stats

import (
	"io"

	"github.com/gocarina/gocsv"

	"neurodrive/internal/model"
)

// WriteGenerationCSV writes one row per generation with a header line.
func WriteGenerationCSV(w io.Writer, generations []model.GenerationStats) error {
	if generations == nil {
		generations = []model.GenerationStats{}
	}
	return gocsv.Marshal(generations, w)
}

// AppendGenerationCSV writes rows without a header, for streaming onto a
// file that already has one.
func AppendGenerationCSV(w io.Writer, generations []model.GenerationStats) error {
	return gocsv.MarshalWithoutHeaders(generations, w)
}

func ReadGenerationCSV(r io.Reader) ([]model.GenerationStats, error) {
	var generations []model.GenerationStats
	if err := gocsv.Unmarshal(r, &generations); err != nil {
		return nil, err
	}
	return generations, nil
}
