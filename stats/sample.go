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

// Package stats computes summary statistics of returns and the risk estimates
// derived from them.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Sample is a set of valid (non-NaN) observations, such as the returns of an
// asset over time.
type Sample struct {
	data     []float64
	mean     *float64 // cached
	variance *float64 // cached
}

// NewSample copies the non-NaN values into a new Sample.
func NewSample(values []float64) *Sample {
	data := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	return &Sample{data: data}
}

// Data of the Sample. Do not modify.
func (s *Sample) Data() []float64 { return s.data }

// Len is the number of observations.
func (s *Sample) Len() int { return len(s.data) }

func (s *Sample) compute() {
	if s.mean != nil {
		return
	}
	var mean, variance float64
	switch len(s.data) {
	case 0:
		mean, variance = math.NaN(), math.NaN()
	case 1:
		mean, variance = s.data[0], math.NaN()
	default:
		mean, variance = stat.MeanVariance(s.data, nil)
	}
	s.mean = &mean
	s.variance = &variance
}

// Mean of the Sample, NaN when empty.
func (s *Sample) Mean() float64 {
	s.compute()
	return *s.mean
}

// Variance is the unbiased sample variance, NaN for fewer than 2
// observations.
func (s *Sample) Variance() float64 {
	s.compute()
	return *s.variance
}

// Sigma is the standard deviation.
func (s *Sample) Sigma() float64 {
	return math.Sqrt(s.Variance())
}
