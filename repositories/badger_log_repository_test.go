package repositories

import (
	"context"
	"testing"
	"time"

	"logserver/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *BadgerLogRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	repo := NewBadgerLogRepository(db, "logging", logs.GetLoggerFromString("DEBUG"))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestBadgerLogRepository_InsertAndListInTimeOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := openTestBadger(t)
	req.NoError(repo.Probe(ctx))

	// Given events inserted out of time order, two sharing a timestamp
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req.NoError(repo.Insert(ctx, domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "third", domain.WithTimestamp(base.Add(2*time.Second)))))
	req.NoError(repo.Insert(ctx, domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "first", domain.WithTimestamp(base))))
	req.NoError(repo.Insert(ctx, domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "second", domain.WithTimestamp(base.Add(time.Second)))))
	req.NoError(repo.Insert(ctx, domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "second", domain.WithTimestamp(base.Add(time.Second)))))

	// When listing
	events, err := repo.List(0)

	// Then nothing collided and order follows the timestamps
	req.NoError(err)
	req.Len(events, 4)
	req.Equal("first", events[0].Message)
	req.Equal("second", events[1].Message)
	req.Equal("second", events[2].Message)
	req.Equal("third", events[3].Message)
	req.True(events[0].Timestamp.Equal(base))

	// And a limited listing keeps the latest events
	limited, err := repo.List(2)
	req.NoError(err)
	req.Len(limited, 2)
	req.Equal("second", limited[0].Message)
	req.Equal("third", limited[1].Message)
}

func TestBadgerLogRepository_ProbeAfterClose(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	repo := NewBadgerLogRepository(db, "logging", logs.GetLoggerFromString("DEBUG"))

	req.NoError(repo.Close())

	req.Error(repo.Probe(context.Background()))
}

func TestBadgerLogRepository_CanceledContext(t *testing.T) {
	req := require.New(t)
	repo := openTestBadger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(repo.Insert(ctx, domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "x")), context.Canceled)
}
