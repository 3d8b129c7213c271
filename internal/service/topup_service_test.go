// internal/service/topup_service_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"metawallet/internal/domain"
	"metawallet/internal/repository"
	"metawallet/internal/util"
	"metawallet/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockAccountRepository is a mock implementation of repository.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	args := m.Called(ctx, q, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Account, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetWalletByAccountID(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	args := m.Called(ctx, q, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByAccountIDForUpdate(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	args := m.Called(ctx, q, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) SetWalletBalance(ctx context.Context, q repository.DBExecutor, walletID string, balance int64) error {
	args := m.Called(ctx, q, walletID, balance)
	return args.Error(0)
}

// MockTopUpEntryRepository is a mock implementation of repository.TopUpEntryRepository.
type MockTopUpEntryRepository struct {
	mock.Mock
}

func (m *MockTopUpEntryRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.TopUpEntry) error {
	args := m.Called(ctx, q, entry)
	return args.Error(0)
}

func (m *MockTopUpEntryRepository) GetEntriesByWalletID(ctx context.Context, q repository.DBExecutor, walletID string, limit, offset int) ([]domain.TopUpEntry, int64, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	return args.Get(0).([]domain.TopUpEntry), args.Get(1).(int64), args.Error(2)
}

// MockWalletCache is a mock implementation of cache.WalletCache.
type MockWalletCache struct {
	mock.Mock
}

func (m *MockWalletCache) Get(ctx context.Context, accountID string) (*domain.Wallet, bool, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Bool(1), args.Error(2)
}

func (m *MockWalletCache) Set(ctx context.Context, accountID string, wallet *domain.Wallet) error {
	args := m.Called(ctx, accountID, wallet)
	return args.Error(0)
}

func (m *MockWalletCache) Invalidate(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController. It embeds
// MockDBExecutor so the service can use it as the transactional executor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// testMocks bundles the collaborators wired into a service under test.
type testMocks struct {
	accountRepo  *MockAccountRepository
	walletRepo   *MockWalletRepository
	entryRepo    *MockTopUpEntryRepository
	walletCache  *MockWalletCache
	dbBeginner   *MockDBBeginner
	txController *MockTxController
}

const testAdminAccountID = "admin-account-id"

func newTestService(t *testing.T) (TopUpService, *testMocks) {
	t.Helper()

	m := &testMocks{
		accountRepo:  new(MockAccountRepository),
		walletRepo:   new(MockWalletRepository),
		entryRepo:    new(MockTopUpEntryRepository),
		walletCache:  new(MockWalletCache),
		dbBeginner:   new(MockDBBeginner),
		txController: new(MockTxController),
	}

	svc := NewTopUpService(
		m.dbBeginner,
		new(MockDBExecutor),
		m.accountRepo,
		m.walletRepo,
		m.entryRepo,
		m.walletCache,
		NewFeeCalculator(DefaultFeeRate),
		testAdminAccountID,
		util.GetLogger(),
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return m.txController, nil
		},
		func(tx db.TxController) error {
			return m.txController.Commit()
		},
		func(tx db.TxController) {
			_ = m.txController.Rollback()
		},
	)
	return svc, m
}

func assertMocks(t *testing.T, m *testMocks) {
	t.Helper()
	mock.AssertExpectationsForObjects(t, m.accountRepo, m.walletRepo, m.entryRepo,
		m.walletCache, m.dbBeginner, m.txController)
}

func int64Ptr(v int64) *int64 { return &v }

func userFixture(id string) *domain.Account {
	return &domain.Account{ID: id, Name: "tester", Role: domain.RoleUser}
}

func TestTopUp(t *testing.T) {
	userID := "user-account-id"
	gross := int64(100000) // net 99900, fee 100 at the default 0.1% rate

	t.Run("SuccessfulTopUp", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		// User wallet has never been mutated: nil balance materializes to the
		// net credit. Admin wallet already holds 500.
		userWallet := &domain.Wallet{ID: "user-wallet", AccountID: userID}
		adminWallet := &domain.Wallet{ID: "admin-wallet", AccountID: testAdminAccountID, Balance: int64Ptr(500)}

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(userWallet, nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, testAdminAccountID).Return(adminWallet, nil).Once()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "user-wallet", int64(99900)).Return(nil).Once()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "admin-wallet", int64(600)).Return(nil).Once()
		m.entryRepo.On("CreateEntry", ctx, mock.Anything, mock.AnythingOfType("*domain.TopUpEntry")).Return(nil).Once()
		m.txController.On("Commit").Return(nil).Once()
		m.txController.On("Rollback").Return(nil).Maybe()
		m.walletCache.On("Invalidate", ctx, userID).Return(nil).Once()
		m.walletCache.On("Invalidate", ctx, testAdminAccountID).Return(nil).Once()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, userID, result.UserID)
		assert.Equal(t, "user-wallet", result.WalletID)
		assert.Equal(t, int64(99900), result.Balance)

		// The audit entry must carry the exact split.
		entry := m.entryRepo.Calls[0].Arguments.Get(2).(*domain.TopUpEntry)
		assert.Equal(t, gross, entry.GrossAmount)
		assert.Equal(t, int64(100), entry.FeeAmount)
		assert.Equal(t, int64(99900), entry.NetAmount)
		assert.Equal(t, gross, entry.NetAmount+entry.FeeAmount)

		assertMocks(t, m)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		for _, amount := range []int64{0, -1, -100000} {
			result, err := svc.TopUp(ctx, userID, amount)
			assert.ErrorIs(t, err, util.ErrInvalidAmount)
			assert.Nil(t, result)
		}

		// No transaction may be begun and nothing mutated for invalid input.
		m.dbBeginner.AssertNotCalled(t, "BeginTxx", mock.Anything, mock.Anything)
		m.txController.AssertNotCalled(t, "Commit")
		m.txController.AssertNotCalled(t, "Rollback")
		m.walletRepo.AssertNotCalled(t, "SetWalletBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(nil, util.ErrNotFound).Once()
		m.txController.On("Rollback").Return(nil).Once()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.ErrorIs(t, err, util.ErrUserNotFound)
		assert.Nil(t, result)
		m.txController.AssertNotCalled(t, "Commit")
		m.walletRepo.AssertNotCalled(t, "SetWalletBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})

	t.Run("UserWalletNotFound", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(nil, util.ErrNotFound).Once()
		m.txController.On("Rollback").Return(nil).Once()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.ErrorIs(t, err, util.ErrWalletNotFound)
		assert.Nil(t, result)
		m.txController.AssertNotCalled(t, "Commit")
		assertMocks(t, m)
	})

	t.Run("AdminWalletNotFound", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		userWallet := &domain.Wallet{ID: "user-wallet", AccountID: userID, Balance: int64Ptr(0)}

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(userWallet, nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, testAdminAccountID).Return(nil, util.ErrNotFound).Once()
		m.txController.On("Rollback").Return(nil).Once()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.ErrorIs(t, err, util.ErrAdminWalletNotFound)
		assert.Nil(t, result)
		m.txController.AssertNotCalled(t, "Commit")
		m.walletRepo.AssertNotCalled(t, "SetWalletBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})

	t.Run("RetriesSerializationFailure", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		userWallet := &domain.Wallet{ID: "user-wallet", AccountID: userID, Balance: int64Ptr(0)}
		adminWallet := &domain.Wallet{ID: "admin-wallet", AccountID: testAdminAccountID, Balance: int64Ptr(0)}
		serializationErr := &pq.Error{Code: "40001"}

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Twice()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(userWallet, nil).Twice()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, testAdminAccountID).Return(adminWallet, nil).Twice()

		// First attempt fails with a serialization error on the user credit;
		// the second attempt goes through.
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "user-wallet", int64(99900)).Return(serializationErr).Once()
		m.txController.On("Rollback").Return(nil).Twice()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "user-wallet", int64(99900)).Return(nil).Once()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "admin-wallet", int64(100)).Return(nil).Once()
		m.entryRepo.On("CreateEntry", ctx, mock.Anything, mock.AnythingOfType("*domain.TopUpEntry")).Return(nil).Once()
		m.txController.On("Commit").Return(nil).Once()
		m.walletCache.On("Invalidate", ctx, userID).Return(nil).Once()
		m.walletCache.On("Invalidate", ctx, testAdminAccountID).Return(nil).Once()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, int64(99900), result.Balance)
		assertMocks(t, m)
	})

	t.Run("RetriesExhausted", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		userWallet := &domain.Wallet{ID: "user-wallet", AccountID: userID, Balance: int64Ptr(0)}
		adminWallet := &domain.Wallet{ID: "admin-wallet", AccountID: testAdminAccountID, Balance: int64Ptr(0)}
		serializationErr := &pq.Error{Code: "40001"}

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Times(3)
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(userWallet, nil).Times(3)
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, testAdminAccountID).Return(adminWallet, nil).Times(3)
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "user-wallet", int64(99900)).Return(serializationErr).Times(3)
		m.txController.On("Rollback").Return(nil).Times(3)

		result, err := svc.TopUp(ctx, userID, gross)

		assert.ErrorIs(t, err, util.ErrConcurrencyConflict)
		assert.Nil(t, result)
		m.txController.AssertNotCalled(t, "Commit")
		assertMocks(t, m)
	})

	t.Run("CommitFailureIsPartialCommit", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		userWallet := &domain.Wallet{ID: "user-wallet", AccountID: userID, Balance: int64Ptr(0)}
		adminWallet := &domain.Wallet{ID: "admin-wallet", AccountID: testAdminAccountID, Balance: int64Ptr(0)}

		m.accountRepo.On("GetAccountByID", ctx, mock.Anything, userID).Return(userFixture(userID), nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, userID).Return(userWallet, nil).Once()
		m.walletRepo.On("GetWalletByAccountIDForUpdate", ctx, mock.Anything, testAdminAccountID).Return(adminWallet, nil).Once()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "user-wallet", int64(99900)).Return(nil).Once()
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "admin-wallet", int64(100)).Return(nil).Once()
		m.entryRepo.On("CreateEntry", ctx, mock.Anything, mock.AnythingOfType("*domain.TopUpEntry")).Return(nil).Once()
		m.txController.On("Commit").Return(errors.New("connection reset during commit")).Once()
		m.txController.On("Rollback").Return(nil).Maybe()

		result, err := svc.TopUp(ctx, userID, gross)

		assert.ErrorIs(t, err, util.ErrPartialCommit)
		assert.Nil(t, result)
		// A suspected partial commit must not touch the cache; stale reads are
		// preferable to hiding the inconsistency from reconciliation.
		m.walletCache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
		assertMocks(t, m)
	})
}

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsNegativeResult", func(t *testing.T) {
		svc, m := newTestService(t)
		s := svc.(*topUpService)

		wallet := &domain.Wallet{ID: "w1", AccountID: "a1", Balance: int64Ptr(50)}

		updated, err := s.applyDelta(ctx, new(MockDBExecutor), wallet, -51)

		assert.ErrorIs(t, err, util.ErrInvalidBalance)
		assert.Nil(t, updated)
		// The stored balance must remain untouched.
		m.walletRepo.AssertNotCalled(t, "SetWalletBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, int64(50), wallet.BalanceOrZero())
	})

	t.Run("MaterializesAbsentBalance", func(t *testing.T) {
		svc, m := newTestService(t)
		s := svc.(*topUpService)

		wallet := &domain.Wallet{ID: "w1", AccountID: "a1"} // nil balance
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "w1", int64(25)).Return(nil).Once()

		updated, err := s.applyDelta(ctx, new(MockDBExecutor), wallet, 25)

		assert.NoError(t, err)
		assert.NotNil(t, updated.Balance)
		assert.Equal(t, int64(25), updated.BalanceOrZero())
		// The input wallet is not mutated in place.
		assert.Nil(t, wallet.Balance)
		assertMocks(t, m)
	})

	t.Run("AllowsDebitToZero", func(t *testing.T) {
		svc, m := newTestService(t)
		s := svc.(*topUpService)

		wallet := &domain.Wallet{ID: "w1", AccountID: "a1", Balance: int64Ptr(50)}
		m.walletRepo.On("SetWalletBalance", ctx, mock.Anything, "w1", int64(0)).Return(nil).Once()

		updated, err := s.applyDelta(ctx, new(MockDBExecutor), wallet, -50)

		assert.NoError(t, err)
		assert.Equal(t, int64(0), updated.BalanceOrZero())
		assertMocks(t, m)
	})
}

func TestGetWalletByAccountID(t *testing.T) {
	accountID := "user-account-id"

	t.Run("CacheHit", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		cached := &domain.Wallet{ID: "w1", AccountID: accountID, Balance: int64Ptr(123)}
		m.walletCache.On("Get", ctx, accountID).Return(cached, true, nil).Once()

		wallet, err := svc.GetWalletByAccountID(ctx, accountID)

		assert.NoError(t, err)
		assert.Equal(t, cached, wallet)
		m.walletRepo.AssertNotCalled(t, "GetWalletByAccountID", mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})

	t.Run("CacheMissFallsBackToStore", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		stored := &domain.Wallet{ID: "w1", AccountID: accountID, Balance: int64Ptr(123)}
		m.walletCache.On("Get", ctx, accountID).Return(nil, false, nil).Once()
		m.walletRepo.On("GetWalletByAccountID", ctx, mock.Anything, accountID).Return(stored, nil).Once()
		m.walletCache.On("Set", ctx, accountID, stored).Return(nil).Once()

		wallet, err := svc.GetWalletByAccountID(ctx, accountID)

		assert.NoError(t, err)
		assert.Equal(t, stored, wallet)
		assertMocks(t, m)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		m.walletCache.On("Get", ctx, accountID).Return(nil, false, nil).Once()
		m.walletRepo.On("GetWalletByAccountID", ctx, mock.Anything, accountID).Return(nil, util.ErrNotFound).Once()

		wallet, err := svc.GetWalletByAccountID(ctx, accountID)

		assert.ErrorIs(t, err, util.ErrWalletNotFound)
		assert.Nil(t, wallet)
		m.walletCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})
}

func TestCreateAccountWithWallet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		m.accountRepo.On("CreateAccount", ctx, mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil).Once()
		m.walletRepo.On("CreateWallet", ctx, mock.Anything, mock.AnythingOfType("*domain.Wallet")).Return(nil).Once()
		m.txController.On("Commit").Return(nil).Once()
		m.txController.On("Rollback").Return(nil).Maybe()

		account, wallet, err := svc.CreateAccountWithWallet(ctx, "alice", domain.RoleUser)

		assert.NoError(t, err)
		assert.NotNil(t, account)
		assert.NotNil(t, wallet)
		assert.Equal(t, account.ID, wallet.AccountID)
		assert.Nil(t, wallet.Balance, "a fresh wallet must start uninitialized")
		assertMocks(t, m)
	})

	t.Run("AccountCreationFails", func(t *testing.T) {
		ctx := context.Background()
		svc, m := newTestService(t)

		m.accountRepo.On("CreateAccount", ctx, mock.Anything, mock.AnythingOfType("*domain.Account")).Return(errors.New("db error")).Once()
		m.txController.On("Rollback").Return(nil).Once()

		account, wallet, err := svc.CreateAccountWithWallet(ctx, "alice", domain.RoleUser)

		assert.Error(t, err)
		assert.Nil(t, account)
		assert.Nil(t, wallet)
		m.txController.AssertNotCalled(t, "Commit")
		m.walletRepo.AssertNotCalled(t, "CreateWallet", mock.Anything, mock.Anything, mock.Anything)
		assertMocks(t, m)
	})
}
