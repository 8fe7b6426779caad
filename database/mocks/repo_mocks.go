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

package mocks

import (
	"context"
	"database/sql"
	"time"

	"github.com/jerry-enebeli/claimpay/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Claim methods

func (m *MockDataSource) GetClaim(ctx context.Context, key model.ClaimKey) (*model.Claim, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Claim), args.Error(1)
}

func (m *MockDataSource) UpdateClaimTotals(ctx context.Context, tx *sql.Tx, updated *model.Claim, expectedOccurrence int) error {
	args := m.Called(ctx, tx, updated, expectedOccurrence)
	return args.Error(0)
}

func (m *MockDataSource) GetBusinessDate(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

// History methods

func (m *MockDataSource) RecordHistory(ctx context.Context, tx *sql.Tx, entry *model.HistoryEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *MockDataSource) RecordAccompaniment(ctx context.Context, tx *sql.Tx, entry *model.AccompanimentEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

// Phase methods

func (m *MockDataSource) GetOpenPhase(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, phaseCode, eventCode int) (*model.Phase, error) {
	args := m.Called(ctx, tx, protocol, phaseCode, eventCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Phase), args.Error(1)
}

func (m *MockDataSource) OpenPhase(ctx context.Context, tx *sql.Tx, phase *model.Phase) error {
	args := m.Called(ctx, tx, phase)
	return args.Error(0)
}

func (m *MockDataSource) ClosePhase(ctx context.Context, tx *sql.Tx, phase *model.Phase, closedAt time.Time, closedBy string) error {
	args := m.Called(ctx, tx, phase, closedAt, closedBy)
	return args.Error(0)
}

func (m *MockDataSource) GetPhaseEventRules(ctx context.Context, eventCode int) ([]model.PhaseEventRule, error) {
	args := m.Called(ctx, eventCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PhaseEventRule), args.Error(1)
}

// Transaction methods

func (m *MockDataSource) BeginTx(ctx context.Context) (*sql.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sql.Tx), args.Error(1)
}

func (m *MockDataSource) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
