// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package migration

import (
	big "math/big"
	reflect "reflect"

	common "github.com/Fantom-foundation/Unitrie/go/common"
	trie "github.com/Fantom-foundation/Unitrie/go/database/trie"
	gomock "go.uber.org/mock/gomock"
)

// MockRepository is a mock of Repository interface.
type MockRepository struct {
	ctrl     *gomock.Controller
	recorder *MockRepositoryMockRecorder
}

// MockRepositoryMockRecorder is the mock recorder for MockRepository.
type MockRepositoryMockRecorder struct {
	mock *MockRepository
}

// NewMockRepository creates a new mock instance.
func NewMockRepository(ctrl *gomock.Controller) *MockRepository {
	mock := &MockRepository{ctrl: ctrl}
	mock.recorder = &MockRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRepository) EXPECT() *MockRepositoryMockRecorder {
	return m.recorder
}

// CreateAccount mocks base method.
func (m *MockRepository) CreateAccount(addr common.Address) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CreateAccount", addr)
}

// CreateAccount indicates an expected call of CreateAccount.
func (mr *MockRepositoryMockRecorder) CreateAccount(addr any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateAccount", reflect.TypeOf((*MockRepository)(nil).CreateAccount), addr)
}

// Flush mocks base method.
func (m *MockRepository) Flush() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Flush")
	ret0, _ := ret[0].(error)
	return ret0
}

// Flush indicates an expected call of Flush.
func (mr *MockRepositoryMockRecorder) Flush() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Flush", reflect.TypeOf((*MockRepository)(nil).Flush))
}

// Root mocks base method.
func (m *MockRepository) Root() (common.Hash, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Root")
	ret0, _ := ret[0].(common.Hash)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Root indicates an expected call of Root.
func (mr *MockRepositoryMockRecorder) Root() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Root", reflect.TypeOf((*MockRepository)(nil).Root))
}

// SaveCode mocks base method.
func (m *MockRepository) SaveCode(addr common.Address, code []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SaveCode", addr, code)
	ret0, _ := ret[0].(error)
	return ret0
}

// SaveCode indicates an expected call of SaveCode.
func (mr *MockRepositoryMockRecorder) SaveCode(addr, code any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SaveCode", reflect.TypeOf((*MockRepository)(nil).SaveCode), addr, code)
}

// SetStorage mocks base method.
func (m *MockRepository) SetStorage(addr common.Address, rawKey, value []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetStorage", addr, rawKey, value)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetStorage indicates an expected call of SetStorage.
func (mr *MockRepositoryMockRecorder) SetStorage(addr, rawKey, value any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetStorage", reflect.TypeOf((*MockRepository)(nil).SetStorage), addr, rawKey, value)
}

// SetupContract mocks base method.
func (m *MockRepository) SetupContract(addr common.Address) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetupContract", addr)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetupContract indicates an expected call of SetupContract.
func (mr *MockRepositoryMockRecorder) SetupContract(addr any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetupContract", reflect.TypeOf((*MockRepository)(nil).SetupContract), addr)
}

// Trie mocks base method.
func (m *MockRepository) Trie() (*trie.Trie, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Trie")
	ret0, _ := ret[0].(*trie.Trie)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Trie indicates an expected call of Trie.
func (mr *MockRepositoryMockRecorder) Trie() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Trie", reflect.TypeOf((*MockRepository)(nil).Trie))
}

// UpdateAccount mocks base method.
func (m *MockRepository) UpdateAccount(addr common.Address, nonce uint64, balance *big.Int) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateAccount", addr, nonce, balance)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdateAccount indicates an expected call of UpdateAccount.
func (mr *MockRepositoryMockRecorder) UpdateAccount(addr, nonce, balance any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateAccount", reflect.TypeOf((*MockRepository)(nil).UpdateAccount), addr, nonce, balance)
}
