package billing

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBillRepo struct {
	stores  map[uuid.UUID]StoreInfo
	members map[uuid.UUID]MemberInfo
	company string
	summary Summary

	created      []Bill
	lastVisitors int
	nextID       int64
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{
		stores:  map[uuid.UUID]StoreInfo{},
		members: map[uuid.UUID]MemberInfo{},
	}
}

func (f *fakeBillRepo) FindStore(_ context.Context, storeID uuid.UUID) (StoreInfo, error) {
	store, ok := f.stores[storeID]
	if !ok {
		return StoreInfo{}, ErrStoreNotFound
	}
	return store, nil
}

func (f *fakeBillRepo) FindMember(_ context.Context, memberID uuid.UUID) (MemberInfo, error) {
	member, ok := f.members[memberID]
	if !ok {
		return MemberInfo{}, ErrMemberNotFound
	}
	return member, nil
}

func (f *fakeBillRepo) CompanyName(_ context.Context, _ uuid.UUID) (string, error) {
	return f.company, nil
}

func (f *fakeBillRepo) CreateWithVisitors(_ context.Context, bill Bill, visitors int) (Bill, error) {
	f.nextID++
	bill.ID = f.nextID
	f.created = append(f.created, bill)
	f.lastVisitors = visitors
	return bill, nil
}

func (f *fakeBillRepo) Sum(_ context.Context, _ Scope, _ Period) (Summary, error) {
	return f.summary, nil
}

type fakeEnqueuer struct {
	sent []Notification
	err  error
}

func (f *fakeEnqueuer) EnqueueBillNotify(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedBilling(repo *fakeBillRepo) (memberID, storeID, companyID uuid.UUID) {
	memberID, storeID, companyID = uuid.New(), uuid.New(), uuid.New()
	repo.members[memberID] = MemberInfo{ID: memberID, Name: "kim", CompanyID: &companyID}
	repo.stores[storeID] = StoreInfo{ID: storeID, Name: "lunchbox", Price: 1000, FCMToken: "tok-1", Enabled: true}
	repo.company = "acme"
	return memberID, storeID, companyID
}

func TestNewBillRecordsAndNotifies(t *testing.T) {
	repo := newFakeBillRepo()
	memberID, storeID, companyID := seedBilling(repo)
	repo.summary = Summary{Total: 4000, Count: 4}
	queue := &fakeEnqueuer{}
	svc := NewService(repo, queue, testLogger())

	bill, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID:   memberID,
		StoreID:    storeID,
		Date:       "20240601",
		ExtraCount: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, storeID, bill.StoreID)
	assert.Equal(t, companyID, bill.CompanyID)
	require.NotNil(t, bill.MemberID)
	assert.Equal(t, memberID, *bill.MemberID)
	assert.False(t, bill.Visitor())
	assert.Equal(t, 3, repo.lastVisitors)

	require.Len(t, queue.sent, 1)
	n := queue.sent[0]
	assert.Equal(t, "tok-1", n.FCMToken)
	assert.Equal(t, "acme", n.CompanyName)
	assert.Equal(t, "kim", n.MemberName)
	assert.Equal(t, 3, n.ExtraCount)
	assert.Equal(t, int64(4000), n.TodayTotal)
	assert.Equal(t, int64(4), n.TodayCount)
}

func TestNewBillVisitorCountBounds(t *testing.T) {
	repo := newFakeBillRepo()
	memberID, storeID, _ := seedBilling(repo)
	svc := NewService(repo, nil, testLogger())

	for _, raw := range []string{"11", "-1", "three"} {
		_, err := svc.NewBill(context.Background(), NewBillInput{
			MemberID:   memberID,
			StoreID:    storeID,
			Date:       "20240601",
			ExtraCount: raw,
		})
		assert.ErrorIs(t, err, ErrVisitorCount, "extraCount=%q", raw)
	}
	assert.Empty(t, repo.created)

	// Blank means no guests.
	_, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID: memberID,
		StoreID:  storeID,
		Date:     "20240601",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.lastVisitors)
}

func TestNewBillRejectsMalformedDate(t *testing.T) {
	repo := newFakeBillRepo()
	memberID, storeID, _ := seedBilling(repo)
	svc := NewService(repo, nil, testLogger())

	_, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID: memberID,
		StoreID:  storeID,
		Date:     "2024-06-01",
	})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestNewBillRequiresCompany(t *testing.T) {
	repo := newFakeBillRepo()
	_, storeID, _ := seedBilling(repo)
	loner := uuid.New()
	repo.members[loner] = MemberInfo{ID: loner, Name: "lee"}
	svc := NewService(repo, nil, testLogger())

	_, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID: loner,
		StoreID:  storeID,
		Date:     "20240601",
	})
	assert.ErrorIs(t, err, ErrNoCompany)
	assert.Empty(t, repo.created)
}

func TestNewBillUnknownStore(t *testing.T) {
	repo := newFakeBillRepo()
	memberID, _, _ := seedBilling(repo)
	svc := NewService(repo, nil, testLogger())

	_, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID: memberID,
		StoreID:  uuid.New(),
		Date:     "20240601",
	})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestNewBillSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeBillRepo()
	memberID, storeID, _ := seedBilling(repo)
	queue := &fakeEnqueuer{err: errors.New("broker down")}
	svc := NewService(repo, queue, testLogger())

	bill, err := svc.NewBill(context.Background(), NewBillInput{
		MemberID: memberID,
		StoreID:  storeID,
		Date:     "20240601",
	})
	require.NoError(t, err)
	assert.NotZero(t, bill.ID)
	assert.Empty(t, queue.sent)
}
