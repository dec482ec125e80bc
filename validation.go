// go-r30x
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-r30x.
//
// go-r30x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-r30x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-r30x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package r30x

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ValidationConfig tunes the extra verification a ValidatedSession layers on
// top of the raw command set.
type ValidationConfig struct {
	// RetryDelay is the pause between verification retry attempts.
	RetryDelay time.Duration

	// ReadRetries bounds re-reads when consecutive downloads disagree.
	ReadRetries int

	// WriteRetries bounds rewrite attempts when readback verification fails.
	WriteRetries int

	// EnableReadVerification requires two consecutive identical downloads
	// before template material is returned to the caller.
	EnableReadVerification bool

	// EnableWriteVerification re-reads stored templates after a write and
	// compares them against what was sent.
	EnableWriteVerification bool
}

// DefaultValidationConfig returns the verification defaults: both directions
// verified, three retries, 50ms between attempts.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		EnableReadVerification:  true,
		ReadRetries:             3,
		EnableWriteVerification: true,
		WriteRetries:            3,
		RetryDelay:              50 * time.Millisecond,
	}
}

// ValidationMetrics tracks verification outcomes across a ValidatedSession's
// lifetime.
type ValidationMetrics struct {
	LastValidation    time.Time
	TotalOperations   uint64
	FailedValidations uint64
}

// ValidatedSession wraps a Session with readback verification for template
// material moving between host and sensor. Unlike the bare Session, its
// validated operations are safe for concurrent use: a mutex serializes them
// onto the single request-reply line.
type ValidatedSession struct {
	*Session
	config  *ValidationConfig
	metrics *ValidationMetrics
	mu      sync.Mutex
}

// NewValidatedSession creates a session over transport, initializes it, and
// wraps it with verification. A nil config selects the defaults.
func NewValidatedSession(ctx context.Context, transport Transport, config *ValidationConfig, opts ...Option) (*ValidatedSession, error) {
	if config == nil {
		config = DefaultValidationConfig()
	}

	session, err := New(transport, opts...)
	if err != nil {
		return nil, err
	}
	if err := session.Init(ctx); err != nil {
		return nil, err
	}

	return &ValidatedSession{
		Session: session,
		config:  config,
		metrics: &ValidationMetrics{},
	}, nil
}

// GetValidationMetrics returns a snapshot of the verification counters.
func (vs *ValidatedSession) GetValidationMetrics() ValidationMetrics {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return *vs.metrics
}

func (vs *ValidatedSession) recordValidation(success bool) {
	vs.metrics.TotalOperations++
	vs.metrics.LastValidation = time.Now()
	if !success {
		vs.metrics.FailedValidations++
	}
}

// DownloadCharacteristicsValidated downloads a character buffer and, when
// read verification is enabled, re-downloads until two consecutive reads
// agree. Serial lines flip bits; a checksum catches frame corruption, but a
// stale sensor buffer or a desynchronized stream can still hand back
// internally consistent wrong data that only a second read exposes.
func (vs *ValidatedSession) DownloadCharacteristicsValidated(ctx context.Context, charBuffer uint8) ([]byte, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	data, err := vs.Session.DownloadCharacteristics(ctx, charBuffer)
	if err != nil {
		vs.recordValidation(false)
		return nil, err
	}
	if !vs.config.EnableReadVerification {
		vs.recordValidation(true)
		return data, nil
	}

	verified, err := vs.verifyRead(ctx, data, func() ([]byte, error) {
		return vs.Session.DownloadCharacteristics(ctx, charBuffer)
	})
	vs.recordValidation(err == nil)
	return verified, err
}

// verifyRead re-runs readFunc until two consecutive results agree, bounded by
// the configured retry count.
func (vs *ValidatedSession) verifyRead(ctx context.Context, initial []byte, readFunc func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	lastData := initial
	consecutiveMatches := 0
	const requiredMatches = 1

	for retry := 0; retry < vs.config.ReadRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(vs.config.RetryDelay):
			}
		}

		verifyData, err := readFunc()
		if err != nil {
			lastErr = err
			consecutiveMatches = 0
			continue
		}

		if bytes.Equal(lastData, verifyData) {
			consecutiveMatches++
		} else {
			consecutiveMatches = 0
			lastData = verifyData
		}

		if consecutiveMatches >= requiredMatches {
			return verifyData, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("read verification failed after %d retries: %w", vs.config.ReadRetries, lastErr)
	}
	return nil, fmt.Errorf("read verification failed: inconsistent data after %d retries", vs.config.ReadRetries)
}

// UploadCharacteristicsValidated uploads template material into a character
// buffer, retrying the whole transfer when the sensor's readback does not
// match what was sent.
func (vs *ValidatedSession) UploadCharacteristicsValidated(ctx context.Context, charBuffer uint8, data []byte) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	var lastErr error
	for retry := 0; retry <= vs.config.WriteRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				vs.recordValidation(false)
				return ctx.Err()
			case <-time.After(vs.config.RetryDelay):
			}
		}

		ok, err := vs.Session.UploadCharacteristics(ctx, charBuffer, data)
		if err != nil {
			lastErr = err
			if !IsRetryable(err) {
				break
			}
			continue
		}
		if ok || !vs.config.EnableWriteVerification {
			vs.recordValidation(true)
			return nil
		}
		lastErr = errors.New("write verification failed: readback mismatch")
	}

	vs.recordValidation(false)
	return fmt.Errorf("upload validation failed after %d retries: %w", vs.config.WriteRetries, lastErr)
}

// StoreTemplateValidated stores the template in charBuffer at position and,
// when write verification is enabled, loads the stored slot back into the
// other character buffer and compares the downloaded material byte for byte.
func (vs *ValidatedSession) StoreTemplateValidated(ctx context.Context, position int, charBuffer uint8) (uint16, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if err := validateCharBuffer(charBuffer); err != nil {
		return 0, err
	}

	expected, err := vs.Session.DownloadCharacteristics(ctx, charBuffer)
	if err != nil {
		vs.recordValidation(false)
		return 0, fmt.Errorf("snapshot template before store: %w", err)
	}

	slot, err := vs.Session.StoreTemplate(ctx, position, charBuffer)
	if err != nil {
		vs.recordValidation(false)
		return 0, err
	}
	if !vs.config.EnableWriteVerification {
		vs.recordValidation(true)
		return slot, nil
	}

	scratch := CharBuffer1
	if charBuffer == CharBuffer1 {
		scratch = CharBuffer2
	}

	var lastErr error
	for retry := 0; retry <= vs.config.WriteRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				vs.recordValidation(false)
				return 0, ctx.Err()
			case <-time.After(vs.config.RetryDelay):
			}
		}

		if err := vs.Session.LoadTemplate(ctx, slot, scratch); err != nil {
			lastErr = err
			continue
		}
		readback, err := vs.Session.DownloadCharacteristics(ctx, scratch)
		if err != nil {
			lastErr = err
			continue
		}
		if bytes.Equal(expected, readback) {
			vs.recordValidation(true)
			return slot, nil
		}
		lastErr = errors.New("store verification failed: stored template differs from buffer")
	}

	vs.recordValidation(false)
	return 0, fmt.Errorf("store validation failed after %d retries: %w", vs.config.WriteRetries, lastErr)
}
