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

// Package estimator defines values evaluated repeatedly over a trading
// calendar, such as forecasts and the parameters of costs and constraints.
//
// An estimator is first initialized with the trading universe and the
// calendar, and then evaluated at each trading date. Estimators may contain
// other estimators, which are always initialized and evaluated before their
// parent.
package estimator

import (
	"fmt"
	"math"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
	"gonum.org/v1/gonum/mat"
)

// Kind of a Value.
type Kind uint8

const (
	NoValue Kind = iota
	ScalarValue
	VectorValue
	MatrixValue
)

func (k Kind) String() string {
	switch k {
	case NoValue:
		return "none"
	case ScalarValue:
		return "scalar"
	case VectorValue:
		return "vector"
	case MatrixValue:
		return "matrix"
	}
	return fmt.Sprintf("<Undefined Kind: %d>", k)
}

// Value is the result of evaluating an estimator: a scalar, a vector or a
// matrix. The zero Value is NoValue.
type Value struct {
	Kind   Kind
	Scalar float64
	Vector []float64
	Matrix *mat.Dense
}

// Scalar creates a scalar Value.
func Scalar(x float64) Value { return Value{Kind: ScalarValue, Scalar: x} }

// Vector creates a vector Value. The slice is used as is.
func Vector(v []float64) Value { return Value{Kind: VectorValue, Vector: v} }

// Matrix creates a matrix Value. The matrix is used as is.
func Matrix(m *mat.Dense) Value { return Value{Kind: MatrixValue, Matrix: m} }

// HasNaN checks the value for NaNs.
func (v Value) HasNaN() bool {
	switch v.Kind {
	case ScalarValue:
		return math.IsNaN(v.Scalar)
	case VectorValue:
		for _, x := range v.Vector {
			if math.IsNaN(x) {
				return true
			}
		}
	case MatrixValue:
		r, c := v.Matrix.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if math.IsNaN(v.Matrix.At(i, j)) {
					return true
				}
			}
		}
	}
	return false
}

// Copy makes a deep copy of the Value.
func (v Value) Copy() Value {
	switch v.Kind {
	case VectorValue:
		c := make([]float64, len(v.Vector))
		copy(c, v.Vector)
		return Vector(c)
	case MatrixValue:
		if v.Matrix.IsEmpty() {
			return Matrix(&mat.Dense{})
		}
		return Matrix(mat.DenseCopyOf(v.Matrix))
	}
	return v
}

// Estimator is evaluated at each date of a trading calendar.
type Estimator interface {
	// Initialize the estimator with the trading universe, including cash as
	// the last element, and the current and future trading dates. It is called
	// whenever the universe changes.
	Initialize(universe []string, calendar []db.Date) error
	// ValuesInTime evaluates the estimator at t, and updates its current value.
	ValuesInTime(t db.Date) (Value, error)
	// CurrentValue is the result of the latest ValuesInTime.
	CurrentValue() Value
}

// Parent is an Estimator containing other estimators.
type Parent interface {
	Children() []Estimator
}

// InitializeRecursive initializes the children of e, if any, and then e
// itself.
func InitializeRecursive(e Estimator, universe []string, calendar []db.Date) error {
	if p, ok := e.(Parent); ok {
		for _, c := range p.Children() {
			if err := InitializeRecursive(c, universe, calendar); err != nil {
				return err
			}
		}
	}
	return e.Initialize(universe, calendar)
}

// ValuesInTimeRecursive evaluates the children of e, if any, and then e
// itself, returning the value of e.
func ValuesInTimeRecursive(e Estimator, t db.Date) (Value, error) {
	if p, ok := e.(Parent); ok {
		for _, c := range p.Children() {
			if _, err := ValuesInTimeRecursive(c, t); err != nil {
				return Value{}, err
			}
		}
	}
	v, err := e.ValuesInTime(t)
	if err != nil {
		return Value{}, errors.Annotate(err, "failed to evaluate at %s", t)
	}
	return v, nil
}

// LabeledMatrix is a matrix with named rows and columns, e.g. a covariance
// matrix of assets or an exposure matrix of assets to factors.
type LabeledMatrix struct {
	Rows    []string
	Columns []string
	Data    *mat.Dense
}

// NewLabeledMatrix checks the dimensions and creates a LabeledMatrix.
func NewLabeledMatrix(rows, columns []string, data *mat.Dense) (*LabeledMatrix, error) {
	r, c := data.Dims()
	if r != len(rows) || c != len(columns) {
		return nil, db.NewError(db.DataError, "matrix is %dx%d, labels are %dx%d",
			r, c, len(rows), len(columns))
	}
	return &LabeledMatrix{Rows: rows, Columns: columns, Data: data}, nil
}

func labelIndices(labels, selected []string) ([]int, bool) {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	res := make([]int, len(selected))
	for i, s := range selected {
		j, ok := idx[s]
		if !ok {
			return nil, false
		}
		res[i] = j
	}
	return res, true
}

func allIndices(n int) []int {
	res := make([]int, n)
	for i := range res {
		res[i] = i
	}
	return res
}

// Select the sub-matrix in the universe: both rows and columns if possible,
// otherwise only the columns, or only the rows.
func (m *LabeledMatrix) Select(universe []string) (*mat.Dense, error) {
	rows, rowsOK := labelIndices(m.Rows, universe)
	cols, colsOK := labelIndices(m.Columns, universe)
	switch {
	case rowsOK && colsOK:
	case colsOK:
		rows = allIndices(len(m.Rows))
	case rowsOK:
		cols = allIndices(len(m.Columns))
	default:
		return nil, db.NewError(db.MissingAssetsError,
			"matrix with rows %v and columns %v does not match the universe %v",
			m.Rows, m.Columns, universe)
	}
	if len(rows) == 0 || len(cols) == 0 {
		return &mat.Dense{}, nil
	}
	res := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			res.Set(i, j, m.Data.At(r, c))
		}
	}
	return res, nil
}
