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

package db

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"

	"github.com/stockparfait/errors"
)

// frameGob is the serialized form of a Frame.
type frameGob struct {
	Dates   []Date
	Columns []string
	Data    [][]float64
}

func encodeFrame(w io.Writer, f *Frame) error {
	return gob.NewEncoder(w).Encode(&frameGob{
		Dates:   f.dates,
		Columns: f.columns,
		Data:    f.data,
	})
}

func decodeFrame(r io.Reader) (*Frame, error) {
	var g frameGob
	if err := gob.NewDecoder(r).Decode(&g); err != nil {
		return nil, err
	}
	// gob drops empty slices.
	if g.Dates == nil {
		g.Dates = []Date{}
	}
	if g.Data == nil {
		g.Data = make([][]float64, len(g.Columns))
	}
	for j := range g.Data {
		if g.Data[j] == nil {
			g.Data[j] = []float64{}
		}
	}
	return NewFrame(g.Dates, g.Columns, g.Data)
}

// MarshalFrame encodes the Frame as a gob blob.
func MarshalFrame(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeFrame(&buf, f); err != nil {
		return nil, errors.Annotate(err, "failed to encode frame")
	}
	return buf.Bytes(), nil
}

// UnmarshalFrame decodes a gob blob created by MarshalFrame.
func UnmarshalFrame(b []byte) (*Frame, error) {
	f, err := decodeFrame(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Annotate(err, "failed to decode frame")
	}
	return f, nil
}

func writeGob(fileName string, f *Frame) error {
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	defer file.Close()
	if err = encodeFrame(file, f); err != nil {
		return errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	return nil
}

func readGob(fileName string) (*Frame, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer file.Close()
	f, err := decodeFrame(file)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return f, nil
}
