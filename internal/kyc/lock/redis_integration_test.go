//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyccase/internal/kyc/lock"
	id "kyccase/pkg/domain"
	"kyccase/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = lock.NewRedis(s.redis.Client, lock.WithTTL(time.Second), lock.WithRetryInterval(10*time.Millisecond))
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestSecondAcquireWaitsForRelease() {
	subject := id.NewSubjectID()
	release, err := s.locker.Acquire(context.Background(), subject)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(ctx, subject)
	s.ErrorIs(err, context.DeadlineExceeded)

	release()
	again, err := s.locker.Acquire(context.Background(), subject)
	s.Require().NoError(err)
	again()
}

func (s *RedisLockSuite) TestExpiredLockIsNotReleasedByOldHolder() {
	subject := id.NewSubjectID()
	stale, err := s.locker.Acquire(context.Background(), subject)
	s.Require().NoError(err)

	// the key vanishing is what a crashed holder's expiry looks like
	s.Require().NoError(s.redis.Client.Del(context.Background(), "kyc:lock:subject:"+subject.String()).Err())
	fresh, err := s.locker.Acquire(context.Background(), subject)
	s.Require().NoError(err)
	defer fresh()

	stale()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(ctx, subject)
	s.ErrorIs(err, context.DeadlineExceeded, "stale release must not drop the fresh holder's lock")
}

func (s *RedisLockSuite) TestJobLockIsExclusive() {
	release, ok, err := s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.Require().True(ok)

	_, ok, err = s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.False(ok)

	release()
	release2, ok, err := s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.True(ok)
	release2()
}

func (s *RedisLockSuite) TestJobLockOutlivesTTLWhileHeld() {
	release, ok, err := s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.Require().True(ok)

	time.Sleep(2500 * time.Millisecond)
	_, ok, err = s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.False(ok, "held job lock must be renewed past its TTL")

	release()
	again, ok, err := s.locker.TryJob(context.Background(), "rescreening")
	s.Require().NoError(err)
	s.True(ok)
	again()
}

func (s *RedisLockSuite) TestSubjectLockOutlivesTTLWhileHeld() {
	subject := id.NewSubjectID()
	release, err := s.locker.Acquire(context.Background(), subject)
	s.Require().NoError(err)
	defer release()

	time.Sleep(2500 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(ctx, subject)
	s.ErrorIs(err, context.DeadlineExceeded)
}
