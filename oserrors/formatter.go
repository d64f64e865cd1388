// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oserrors

import (
	"errors"
	"fmt"
	"runtime/debug"

	"rivaas.dev/osrv/osresponse"
)

// Formatter converts an error into a user-visible Response. Implementations
// are framework-agnostic, mirroring the teacher's rivaas.dev/errors design.
type Formatter interface {
	Format(err error) (*osresponse.Response, error)
}

// limitBody is the exact JSON shape documented in §7 for RequestLimitExceeded.
type limitBody struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	MaxBytes    int64  `json:"maxBytes"`
	ActualBytes int64  `json:"actualBytes"`
}

// devBody is the default non-production response body (§7).
type devBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Details string `json:"details"`
	Stack   string `json:"stack"`
}

// prodBody is the default production response body (§7).
type prodBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Default implements Formatter per §7: RequestLimitExceeded always yields a
// 413 with the documented maxBytes/actualBytes shape; any other error
// yields a 500 with production or development detail depending on
// IsProduction.
type Default struct {
	IsProduction bool
}

// Format implements Formatter.
func (d *Default) Format(err error) (*osresponse.Response, error) {
	var rle *RequestLimitExceeded
	if errors.As(err, &rle) {
		return osresponse.JSON(413, limitBody{
			OK:          false,
			Error:       "Request body too large",
			MaxBytes:    rle.MaxBytes,
			ActualBytes: rle.ActualBytes,
		})
	}

	if d.IsProduction {
		return osresponse.JSON(500, prodBody{OK: false, Error: "Internal Server Error"})
	}

	return osresponse.JSON(500, devBody{
		OK:      false,
		Error:   "Internal Server Error",
		Details: err.Error(),
		Stack:   captureStack(err),
	})
}

func captureStack(err error) string {
	if he, ok := err.(*HandlerError); ok && he.Panic != nil {
		return string(debug.Stack())
	}
	return fmt.Sprintf("%+v", err)
}
