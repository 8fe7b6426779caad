/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     apierror.ErrorCode
		expected bool
	}{
		{
			name:     "matching code",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Claim not found", nil),
			code:     apierror.ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped api error",
			err:      fmt.Errorf("locate claim: %w", apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil)),
			code:     apierror.ErrConflict,
			expected: true,
		},
		{
			name:     "different code",
			err:      apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil),
			code:     apierror.ErrNotFound,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("unknown error"),
			code:     apierror.ErrInternalServer,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.HasCode(tt.err, tt.code))
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	apiErr := apierror.NewAPIError(apierror.ErrNotFound, "Business date not found", sql.ErrNoRows)
	assert.True(t, errors.Is(apiErr, sql.ErrNoRows))

	noCause := apierror.NewAPIError(apierror.ErrConflict, "Conflict", "text details")
	assert.Nil(t, noCause.Unwrap())
}
