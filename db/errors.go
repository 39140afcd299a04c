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
	"fmt"

	"github.com/stockparfait/errors"
)

// ErrorKind classifies errors caused by the data rather than by the code or
// the environment.
type ErrorKind uint8

const (
	DataError          ErrorKind = iota // data is in the wrong form or insufficient
	MissingTimesError                   // no data for the requested time
	MissingAssetsError                  // data can't be reconciled with the universe
	NaNError                            // NaN values where they are not allowed
)

func (k ErrorKind) String() string {
	switch k {
	case DataError:
		return "DataError"
	case MissingTimesError:
		return "MissingTimesError"
	case MissingAssetsError:
		return "MissingAssetsError"
	case NaNError:
		return "NaNError"
	default:
		return fmt.Sprintf("<Undefined ErrorKind: %d>", k)
	}
}

// Error is a data error of a specific kind.
type Error struct {
	Kind ErrorKind
	err  error
}

var _ error = &Error{}

// NewError creates an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, err: errors.Reason(format, args...)}
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.err.Error()
}

// Unwrap implements error unwrapping.
func (e *Error) Unwrap() error { return e.err }

// KindOf finds the first Error in the chain of wrapped errors and returns its
// kind. The second value is false when err is not a data error.
func KindOf(err error) (ErrorKind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

// IsKind checks whether err is a data error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
