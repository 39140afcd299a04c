// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package estimator

import (
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
	"gonum.org/v1/gonum/mat"
)

// DataOptions control how DataEstimator selects and checks its values.
type DataOptions struct {
	// UseLastAvailableTime makes time-indexed data return the latest row at or
	// before t instead of requiring the exact date.
	UseLastAvailableTime bool
	AllowNaNs            bool
	// DataIncludesCash selects the full universe from the data; otherwise the
	// universe without cash.
	DataIncludesCash bool
	// IgnoreShapeCheck skips the universe selection.
	IgnoreShapeCheck bool
}

type dataKind uint8

const (
	scalarData dataKind = iota
	vectorData
	seriesData
	matrixData
	labeledMatrixData
	frameData
	timeScalarData
	timeMatrixData
	estimatorData
)

// DataEstimator serves point-in-time values from constant or time-indexed
// data, restricted to the current trading universe.
type DataEstimator struct {
	DataOptions
	kind          dataKind
	scalar        float64
	vector        []float64
	series        *db.Series
	matrix        *mat.Dense
	labeledMatrix *LabeledMatrix
	frame         *db.Frame
	dates         []db.Date // of timeScalarData and timeMatrixData
	scalars       []float64
	matrices      []*LabeledMatrix
	estimator     Estimator

	universe []string // nil until initialized
	current  Value
}

var _ Estimator = &DataEstimator{}
var _ Parent = &DataEstimator{}

// NewScalarData serves a constant scalar.
func NewScalarData(x float64, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: scalarData, scalar: x}
}

// NewVectorData serves a constant unlabeled vector, which must have the size
// of the universe.
func NewVectorData(v []float64, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: vectorData, vector: v}
}

// NewSeriesData serves a constant vector labeled by assets.
func NewSeriesData(s *db.Series, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: seriesData, series: s}
}

// NewMatrixData serves a constant unlabeled matrix, at least one dimension of
// which must be the size of the universe.
func NewMatrixData(m *mat.Dense, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: matrixData, matrix: m}
}

// NewLabeledMatrixData serves a constant matrix labeled by assets on one or
// both axes.
func NewLabeledMatrixData(m *LabeledMatrix, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: labeledMatrixData, labeledMatrix: m}
}

// NewFrameData serves the row of the Frame at each date, with columns labeled
// by assets.
func NewFrameData(f *db.Frame, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: frameData, frame: f}
}

func checkDates(dates []db.Date, n int) error {
	if len(dates) != n {
		return db.NewError(db.DataError, "%d dates for %d values", len(dates), n)
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return db.NewError(db.DataError, "dates are not increasing at %s", dates[i])
		}
	}
	return nil
}

// NewTimeSeriesScalarData serves the scalar at each date, e.g. a time-varying
// parameter. Dates must be strictly increasing.
func NewTimeSeriesScalarData(dates []db.Date, values []float64, opts DataOptions) (*DataEstimator, error) {
	if err := checkDates(dates, len(values)); err != nil {
		return nil, err
	}
	return &DataEstimator{DataOptions: opts, kind: timeScalarData,
		dates: dates, scalars: values}, nil
}

// NewTimeMatrixData serves the matrix at each date, e.g. a time-varying
// covariance, selected by the universe like NewLabeledMatrixData. Dates must
// be strictly increasing.
func NewTimeMatrixData(dates []db.Date, matrices []*LabeledMatrix, opts DataOptions) (*DataEstimator, error) {
	if err := checkDates(dates, len(matrices)); err != nil {
		return nil, err
	}
	return &DataEstimator{DataOptions: opts, kind: timeMatrixData,
		dates: dates, matrices: matrices}, nil
}

// NewEstimatorData serves the current value of another estimator, which is
// evaluated first as a child. Its value is trusted as is.
func NewEstimatorData(e Estimator, opts DataOptions) *DataEstimator {
	return &DataEstimator{DataOptions: opts, kind: estimatorData, estimator: e}
}

// Children implements Parent.
func (d *DataEstimator) Children() []Estimator {
	if d.kind == estimatorData {
		return []Estimator{d.estimator}
	}
	return nil
}

// Initialize implements Estimator.
func (d *DataEstimator) Initialize(universe []string, calendar []db.Date) error {
	if len(universe) == 0 {
		return db.NewError(db.DataError, "empty universe")
	}
	if d.DataIncludesCash {
		d.universe = append([]string{}, universe...)
	} else {
		d.universe = append([]string{}, universe[:len(universe)-1]...)
	}
	return nil
}

// CurrentValue implements Estimator.
func (d *DataEstimator) CurrentValue() Value { return d.current }

func (d *DataEstimator) skipSelection() bool {
	return d.universe == nil || d.IgnoreShapeCheck
}

func (d *DataEstimator) selectSeries(s *db.Series) (Value, error) {
	if d.skipSelection() {
		return Vector(s.Values), nil
	}
	sel, err := s.Select(d.universe)
	if err != nil {
		return Value{}, errors.Annotate(err, "cannot reconcile the data with the universe")
	}
	return Vector(sel.Values), nil
}

func (d *DataEstimator) selectMatrix(m *LabeledMatrix) (Value, error) {
	if d.skipSelection() {
		return Matrix(m.Data), nil
	}
	res, err := m.Select(d.universe)
	if err != nil {
		return Value{}, err
	}
	return Matrix(res), nil
}

// timeIndex finds t in the dates, or the latest date before t with
// UseLastAvailableTime. It returns -1 if there is none.
func (d *DataEstimator) timeIndex(t db.Date) int {
	i := sort.Search(len(d.dates), func(i int) bool { return !d.dates[i].Before(t) })
	if i < len(d.dates) && d.dates[i] == t {
		return i
	}
	if d.UseLastAvailableTime {
		return i - 1
	}
	return -1
}

// internalValue computes the value at t, possibly sharing the data.
func (d *DataEstimator) internalValue(t db.Date) (Value, error) {
	switch d.kind {
	case scalarData:
		return Scalar(d.scalar), nil
	case vectorData:
		if !d.skipSelection() && len(d.vector) != len(d.universe) {
			return Value{}, db.NewError(db.MissingAssetsError,
				"vector of size %d does not match the universe of size %d",
				len(d.vector), len(d.universe))
		}
		return Vector(d.vector), nil
	case seriesData:
		return d.selectSeries(d.series)
	case matrixData:
		if !d.skipSelection() {
			r, c := d.matrix.Dims()
			if r != len(d.universe) && c != len(d.universe) {
				return Value{}, db.NewError(db.MissingAssetsError,
					"matrix of size %dx%d does not match the universe of size %d",
					r, c, len(d.universe))
			}
		}
		return Matrix(d.matrix), nil
	case labeledMatrixData:
		return d.selectMatrix(d.labeledMatrix)
	case frameData:
		i := d.frame.Index(t)
		if d.UseLastAvailableTime {
			i = d.frame.LastIndexAtOrBefore(t)
		}
		if i < 0 {
			return Value{}, db.NewError(db.MissingTimesError, "no data for %s", t)
		}
		return d.selectSeries(d.frame.Row(i))
	case timeScalarData, timeMatrixData:
		i := d.timeIndex(t)
		if i < 0 {
			return Value{}, db.NewError(db.MissingTimesError, "no data for %s", t)
		}
		if d.kind == timeScalarData {
			return Scalar(d.scalars[i]), nil
		}
		return d.selectMatrix(d.matrices[i])
	case estimatorData:
		return d.estimator.CurrentValue(), nil
	}
	return Value{}, db.NewError(db.DataError, "unsupported data")
}

// ValuesInTime implements Estimator. The result is a copy of the data.
func (d *DataEstimator) ValuesInTime(t db.Date) (Value, error) {
	v, err := d.internalValue(t)
	if err != nil {
		return Value{}, err
	}
	if d.kind != estimatorData && !d.AllowNaNs && v.HasNaN() {
		return Value{}, db.NewError(db.NaNError, "found NaNs at %s", t)
	}
	d.current = v.Copy()
	return d.current.Copy(), nil
}
