// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package helper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	errUnreachable := errors.New("collector unreachable")

	tests := []struct {
		name      string
		failures  int
		rc        RetryConfig
		cancelCtx bool
		wantCalls int
		wantErr   error
	}{
		{
			name:      "success on first call",
			failures:  0,
			rc:        RetryConfig{Count: 2, Delay: time.Millisecond},
			wantCalls: 1,
		},
		{
			name:      "success after one retry",
			failures:  1,
			rc:        RetryConfig{Count: 2, Delay: time.Millisecond},
			wantCalls: 2,
		},
		{
			name:      "retries exhausted",
			failures:  10,
			rc:        RetryConfig{Count: 2, Delay: time.Millisecond},
			wantCalls: 3,
			wantErr:   errUnreachable,
		},
		{
			name:      "no retries configured",
			failures:  10,
			rc:        RetryConfig{Count: 0, Delay: time.Millisecond},
			wantCalls: 1,
			wantErr:   errUnreachable,
		},
		{
			name:      "context canceled while waiting",
			failures:  10,
			rc:        RetryConfig{Count: 2, Delay: time.Minute},
			cancelCtx: true,
			wantCalls: 1,
			wantErr:   context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			effector := func(ctx context.Context) error {
				calls++
				if tt.cancelCtx {
					cancel()
				}
				if calls <= tt.failures {
					return errUnreachable
				}
				return nil
			}

			err := Retry(effector, tt.rc)(ctx)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func Test_getExpBackoff(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		iteration int
		want      time.Duration
	}{
		{name: "first iteration", delay: time.Second, iteration: 1, want: time.Second},
		{name: "second iteration", delay: time.Second, iteration: 2, want: 2 * time.Second},
		{name: "fourth iteration", delay: 500 * time.Millisecond, iteration: 4, want: 4 * time.Second},
		{name: "negative iteration", delay: time.Second, iteration: -3, want: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExpBackoff(tt.delay, tt.iteration))
		})
	}
}
