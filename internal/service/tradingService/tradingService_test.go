package tradingService

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tradeledger/data/repository"
	"tradeledger/internal/model"
	"tradeledger/internal/service"
)

type fakeRepo struct {
	nextID int64
	users  map[string]model.User
	cash   map[int64]decimal.Decimal
	trxs   map[int64][]model.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: make(map[string]model.User),
		cash:  make(map[int64]decimal.Decimal),
		trxs:  make(map[int64][]model.Transaction),
	}
}

func (r *fakeRepo) addUser(username string, cash decimal.Decimal) int64 {
	r.nextID++
	r.users[username] = model.User{UserID: r.nextID, Username: username, Cash: cash}
	r.cash[r.nextID] = cash
	return r.nextID
}

func (r *fakeRepo) InsertUser(_ context.Context, username, hash string) (int64, error) {
	if _, ok := r.users[username]; ok {
		return 0, repository.ErrAlreadyExists
	}
	r.nextID++
	r.users[username] = model.User{UserID: r.nextID, Username: username, Hash: hash, Cash: decimal.NewFromInt(10000)}
	r.cash[r.nextID] = decimal.NewFromInt(10000)
	return r.nextID, nil
}

func (r *fakeRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	user, ok := r.users[username]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (r *fakeRepo) GetCash(_ context.Context, userID int64) (decimal.Decimal, error) {
	return r.cash[userID], nil
}

func (r *fakeRepo) GetCashForUpdate(_ context.Context, userID int64) (decimal.Decimal, error) {
	return r.cash[userID], nil
}

func (r *fakeRepo) UpdateCash(_ context.Context, userID int64, delta decimal.Decimal) error {
	r.cash[userID] = r.cash[userID].Add(delta)
	return nil
}

func (r *fakeRepo) InsertTransaction(_ context.Context, userID int64, trx model.Transaction) error {
	r.trxs[userID] = append(r.trxs[userID], trx)
	return nil
}

func (r *fakeRepo) GetHoldings(_ context.Context, userID int64) ([]model.Holding, error) {
	sums := make(map[string]int)
	for _, trx := range r.trxs[userID] {
		sums[trx.Symbol] += trx.Shares
	}

	var holdings []model.Holding
	for symbol, shares := range sums {
		if shares > 0 {
			holdings = append(holdings, model.Holding{Symbol: symbol, Shares: shares})
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

func (r *fakeRepo) GetHolding(_ context.Context, userID int64, symbol string) (int, error) {
	shares := 0
	for _, trx := range r.trxs[userID] {
		if trx.Symbol == symbol {
			shares += trx.Shares
		}
	}
	if shares <= 0 {
		return 0, repository.ErrNotFound
	}
	return shares, nil
}

func (r *fakeRepo) GetTransactions(_ context.Context, userID int64) ([]model.Transaction, error) {
	trxs := make([]model.Transaction, len(r.trxs[userID]))
	copy(trxs, r.trxs[userID])
	sort.Slice(trxs, func(i, j int) bool { return trxs[i].DtCreate.After(trxs[j].DtCreate) })
	return trxs, nil
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

type fakeQuoteApi struct {
	prices map[string]decimal.Decimal
	err    error
}

func (a *fakeQuoteApi) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	if a.err != nil {
		return model.Quote{}, a.err
	}
	price, ok := a.prices[symbol]
	if !ok {
		return model.Quote{}, errors.New("not found")
	}
	return model.Quote{Symbol: symbol, Name: symbol + " Inc", Price: price}, nil
}

func newService(repo *fakeRepo, prices map[string]decimal.Decimal) *TradingService {
	return New(repo, &fakeQuoteApi{prices: prices}, nil)
}

func TestBuyDebitsCashAndAppendsTransaction(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)})

	total, err := srv.Buy(context.Background(), userID, "AAA", 10)
	if err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total cost = %s, want 1000", total)
	}
	if !repo.cash[userID].Equal(decimal.NewFromInt(9000)) {
		t.Errorf("cash = %s, want 9000", repo.cash[userID])
	}
	if len(repo.trxs[userID]) != 1 {
		t.Fatalf("transactions = %d, want 1", len(repo.trxs[userID]))
	}
	trx := repo.trxs[userID][0]
	if trx.Shares != 10 || !trx.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("transaction = {shares: %d, price: %s}, want {shares: 10, price: 100}", trx.Shares, trx.Price)
	}
}

func TestBuyInsufficientCashLeavesStateUntouched(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("bob", decimal.NewFromInt(50))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)})

	_, err := srv.Buy(context.Background(), userID, "AAA", 1)
	if !errors.Is(err, service.ErrInsufficientFunds) {
		t.Fatalf("Buy error = %v, want ErrInsufficientFunds", err)
	}
	if !repo.cash[userID].Equal(decimal.NewFromInt(50)) {
		t.Errorf("cash = %s, want 50 (unchanged)", repo.cash[userID])
	}
	if len(repo.trxs[userID]) != 0 {
		t.Errorf("transactions = %d, want 0", len(repo.trxs[userID]))
	}
}

func TestBuyUnknownSymbol(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("carol", decimal.NewFromInt(10000))
	srv := newService(repo, nil)

	_, err := srv.Buy(context.Background(), userID, "NOPE", 1)
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("Buy error = %v, want ErrNotFound", err)
	}
}

func TestSellCreditsCashAndAppendsNegativeRow(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	prices := map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)}
	srv := newService(repo, prices)

	if _, err := srv.Buy(context.Background(), userID, "AAA", 10); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}

	prices["AAA"] = decimal.NewFromInt(120)

	total, err := srv.Sell(context.Background(), userID, "AAA", 5)
	if err != nil {
		t.Fatalf("Sell: unexpected error: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("total sale = %s, want 600", total)
	}
	if !repo.cash[userID].Equal(decimal.NewFromInt(9600)) {
		t.Errorf("cash = %s, want 9600", repo.cash[userID])
	}

	held, err := repo.GetHolding(context.Background(), userID, "AAA")
	if err != nil {
		t.Fatalf("GetHolding: unexpected error: %v", err)
	}
	if held != 5 {
		t.Errorf("holding = %d, want 5", held)
	}

	trx := repo.trxs[userID][1]
	if trx.Shares != -5 || !trx.Price.Equal(decimal.NewFromInt(120)) {
		t.Errorf("transaction = {shares: %d, price: %s}, want {shares: -5, price: 120}", trx.Shares, trx.Price)
	}
}

func TestSellMoreThanHeldLeavesStateUntouched(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)})

	if _, err := srv.Buy(context.Background(), userID, "AAA", 3); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}
	cashBefore := repo.cash[userID]

	_, err := srv.Sell(context.Background(), userID, "AAA", 5)
	if !errors.Is(err, service.ErrInsufficientShares) {
		t.Fatalf("Sell error = %v, want ErrInsufficientShares", err)
	}
	if !repo.cash[userID].Equal(cashBefore) {
		t.Errorf("cash = %s, want %s (unchanged)", repo.cash[userID], cashBefore)
	}
	if len(repo.trxs[userID]) != 1 {
		t.Errorf("transactions = %d, want 1", len(repo.trxs[userID]))
	}
}

func TestSellFullySoldSymbolReportsNotFound(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)})

	if _, err := srv.Buy(context.Background(), userID, "AAA", 2); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}
	if _, err := srv.Sell(context.Background(), userID, "AAA", 2); err != nil {
		t.Fatalf("Sell: unexpected error: %v", err)
	}

	_, err := srv.Sell(context.Background(), userID, "AAA", 1)
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("Sell error = %v, want ErrNotFound for a fully sold symbol", err)
	}
}

func TestBuySellRoundTripRestoresCash(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromFloat(123.45)})

	if _, err := srv.Buy(context.Background(), userID, "AAA", 7); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}
	if _, err := srv.Sell(context.Background(), userID, "AAA", 7); err != nil {
		t.Fatalf("Sell: unexpected error: %v", err)
	}

	if !repo.cash[userID].Equal(decimal.NewFromInt(10000)) {
		t.Errorf("cash = %s, want 10000 after round trip at stable price", repo.cash[userID])
	}
}

func TestDepositAddsCashWithoutLogRow(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, nil)

	if err := srv.Deposit(context.Background(), userID, 500); err != nil {
		t.Fatalf("Deposit: unexpected error: %v", err)
	}
	if !repo.cash[userID].Equal(decimal.NewFromInt(10500)) {
		t.Errorf("cash = %s, want 10500", repo.cash[userID])
	}
	if len(repo.trxs[userID]) != 0 {
		t.Errorf("transactions = %d, want 0 (deposits are not logged)", len(repo.trxs[userID]))
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newFakeRepo()
	srv := newService(repo, nil)

	userID, err := srv.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Register: unexpected error: %v", err)
	}
	if userID == 0 {
		t.Fatal("Register returned zero user id")
	}

	user := repo.users["alice"]
	if user.Hash == "s3cret" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte("s3cret")); err != nil {
		t.Errorf("stored hash does not verify against the password: %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeRepo()
	srv := newService(repo, nil)

	firstID, err := srv.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Register: unexpected error: %v", err)
	}

	_, err = srv.Register(context.Background(), "alice", "other")
	if !errors.Is(err, service.ErrAlreadyExists) {
		t.Fatalf("Register error = %v, want ErrAlreadyExists", err)
	}

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: unexpected error: %v", err)
	}
	if user.UserID != firstID {
		t.Errorf("user id = %d, want %d (first registration kept)", user.UserID, firstID)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	srv := newService(repo, nil)

	userID, err := srv.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Register: unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantID   int64
		wantErr  error
	}{
		{name: "valid credentials", username: "alice", password: "s3cret", wantID: userID},
		{name: "wrong password", username: "alice", password: "wrong", wantErr: service.ErrWrongCredentials},
		{name: "unknown user", username: "nobody", password: "s3cret", wantErr: service.ErrWrongCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, err := srv.Login(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login error = %v, want %v", err, tt.wantErr)
			}
			if gotID != tt.wantID {
				t.Errorf("user id = %d, want %d", gotID, tt.wantID)
			}
		})
	}
}

func TestGetPortfolioTotals(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	prices := map[string]decimal.Decimal{
		"AAA": decimal.NewFromInt(100),
		"BBB": decimal.NewFromInt(50),
	}
	srv := newService(repo, prices)

	if _, err := srv.Buy(context.Background(), userID, "AAA", 10); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}
	if _, err := srv.Buy(context.Background(), userID, "BBB", 4); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}

	portfolio, err := srv.GetPortfolio(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetPortfolio: unexpected error: %v", err)
	}

	// cash 8800 + 10*100 + 4*50 = 10000
	if !portfolio.Cash.Equal(decimal.NewFromInt(8800)) {
		t.Errorf("cash = %s, want 8800", portfolio.Cash)
	}
	if !portfolio.TotalValue.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("total value = %s, want 10000", portfolio.TotalValue)
	}
	if !portfolio.GrandTotal.Equal(portfolio.TotalValue) {
		t.Errorf("grand total = %s, want equal to total value %s", portfolio.GrandTotal, portfolio.TotalValue)
	}
	if len(portfolio.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(portfolio.Positions))
	}
	if portfolio.Positions[0].Symbol != "AAA" || !portfolio.Positions[0].Value.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("position[0] = %+v, want AAA valued 1000", portfolio.Positions[0])
	}
}

func TestGetPortfolioQuoteFailure(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	prices := map[string]decimal.Decimal{"AAA": decimal.NewFromInt(100)}
	srv := newService(repo, prices)

	if _, err := srv.Buy(context.Background(), userID, "AAA", 1); err != nil {
		t.Fatalf("Buy: unexpected error: %v", err)
	}

	delete(prices, "AAA")

	_, err := srv.GetPortfolio(context.Background(), userID)
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("GetPortfolio error = %v, want ErrNotFound when the provider fails", err)
	}
}

func TestGetQuoteProviderFailureIsNotFound(t *testing.T) {
	srv := New(newFakeRepo(), &fakeQuoteApi{err: errors.New("connection refused")}, nil)

	_, err := srv.GetQuote(context.Background(), "AAA")
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("GetQuote error = %v, want ErrNotFound (outage indistinguishable from unknown symbol)", err)
	}
}

func TestGetHistoryOrderedByDateDescending(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(10000))
	srv := newService(repo, nil)

	base := time.Now()
	for i := 0; i < 3; i++ {
		repo.trxs[userID] = append(repo.trxs[userID], model.Transaction{
			Symbol:   "AAA",
			Shares:   1,
			Price:    decimal.NewFromInt(10),
			DtCreate: base.Add(time.Duration(i) * time.Minute),
		})
	}

	trxs, err := srv.GetHistory(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetHistory: unexpected error: %v", err)
	}
	for i := 1; i < len(trxs); i++ {
		if trxs[i].DtCreate.After(trxs[i-1].DtCreate) {
			t.Fatalf("history not in descending order at index %d", i)
		}
	}
}

func TestHoldingsNeverNegative(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser("alice", decimal.NewFromInt(100000))
	srv := newService(repo, map[string]decimal.Decimal{"AAA": decimal.NewFromInt(10), "BBB": decimal.NewFromInt(20)})

	ops := []struct {
		buy    bool
		symbol string
		shares int
	}{
		{true, "AAA", 5},
		{true, "BBB", 3},
		{false, "AAA", 5},
		{false, "AAA", 1}, // already flat, must be rejected
		{false, "BBB", 4}, // more than held, must be rejected
		{false, "BBB", 3},
	}

	for _, op := range ops {
		if op.buy {
			if _, err := srv.Buy(context.Background(), userID, op.symbol, op.shares); err != nil {
				t.Fatalf("Buy %s x%d: unexpected error: %v", op.symbol, op.shares, err)
			}
			continue
		}
		_, _ = srv.Sell(context.Background(), userID, op.symbol, op.shares)
	}

	sums := make(map[string]int)
	for _, trx := range repo.trxs[userID] {
		sums[trx.Symbol] += trx.Shares
	}
	for symbol, shares := range sums {
		if shares < 0 {
			t.Errorf("holding %s = %d, must never go negative", symbol, shares)
		}
	}
	if repo.cash[userID].IsNegative() {
		t.Errorf("cash = %s, must never go negative", repo.cash[userID])
	}
}
