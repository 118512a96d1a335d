package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

var errBrokerDown = errors.New("broker unreachable")

// BreakerSuite drives a breaker the way the notification publisher does:
// Allow before each send, then RecordFailure or RecordSuccess on the result.
type BreakerSuite struct {
	suite.Suite
	now     time.Time
	breaker *Breaker
	sent    int
	dropped int
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	s.sent = 0
	s.dropped = 0
	s.breaker = New("notification-publisher",
		WithFailureThreshold(3),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return s.now }),
	)
}

// publish mirrors one publisher call against a broker returning err.
func (s *BreakerSuite) publish(err error) StateChange {
	if !s.breaker.Allow() {
		s.dropped++
		return StateChange{}
	}
	s.sent++
	if err != nil {
		_, change := s.breaker.RecordFailure()
		return change
	}
	_, change := s.breaker.RecordSuccess()
	return change
}

func (s *BreakerSuite) TestHealthyBrokerNeverTrips() {
	for range 10 {
		s.Equal(StateChange{}, s.publish(nil))
	}
	s.Equal(10, s.sent)
	s.Zero(s.dropped)
	s.Equal("closed", s.breaker.State().String())
	s.Equal("notification-publisher", s.breaker.Name())
}

func (s *BreakerSuite) TestOutageOpensOnThirdConsecutiveFailure() {
	s.False(s.publish(errBrokerDown).Opened)
	s.False(s.publish(errBrokerDown).Opened)
	s.True(s.publish(errBrokerDown).Opened)
	s.True(s.breaker.IsOpen())

	s.Run("batches inside the cooldown are dropped without a send", func() {
		s.now = s.now.Add(29 * time.Second)
		s.publish(nil)
		s.publish(nil)
		s.Equal(3, s.sent)
		s.Equal(2, s.dropped)
	})
}

func (s *BreakerSuite) TestIntermittentFailuresDoNotAccumulate() {
	for range 4 {
		s.publish(errBrokerDown)
		s.publish(errBrokerDown)
		s.publish(nil)
	}
	s.False(s.breaker.IsOpen())
	s.Zero(s.dropped)
}

func (s *BreakerSuite) TestRecoveryAfterCooldown() {
	for range 3 {
		s.publish(errBrokerDown)
	}
	s.Require().True(s.breaker.IsOpen())

	s.Run("failed trial send keeps it open for another cooldown", func() {
		s.now = s.now.Add(30 * time.Second)
		change := s.publish(errBrokerDown)
		s.False(change.Opened, "already open")
		s.True(s.breaker.IsOpen())

		s.now = s.now.Add(time.Second)
		s.publish(nil)
		s.Equal(4, s.sent)
		s.Equal(1, s.dropped)
	})

	s.Run("successful trial send closes it", func() {
		s.now = s.now.Add(30 * time.Second)
		s.True(s.publish(nil).Closed)
		s.False(s.breaker.IsOpen())

		s.publish(nil)
		s.Equal(6, s.sent)
	})
}

func (s *BreakerSuite) TestOneTrialSendPerCooldown() {
	for range 3 {
		s.publish(errBrokerDown)
	}
	s.now = s.now.Add(time.Minute)
	s.True(s.breaker.Allow())
	s.False(s.breaker.Allow())
}

func (s *BreakerSuite) TestSuccessThresholdNeedsConsecutiveSuccesses() {
	b := New("notification-publisher",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithClock(func() time.Time { return s.now }),
	)
	b.RecordFailure()

	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	b.RecordFailure()
	b.RecordSuccess()
	s.True(b.IsOpen(), "a failure restarts the success count")

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
}

func (s *BreakerSuite) TestResetClearsAnOpenBreaker() {
	for range 3 {
		s.publish(errBrokerDown)
	}
	s.breaker.Reset()
	s.Equal(StateClosed, s.breaker.State())
	s.Equal(StateChange{}, s.publish(nil))
	s.Zero(s.dropped)
}

func (s *BreakerSuite) TestDefaultsIgnoreNonPositiveOptions() {
	b := New("defaults", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0), WithClock(nil))
	for range 4 {
		b.RecordFailure()
	}
	s.False(b.IsOpen())
	_, change := b.RecordFailure()
	s.True(change.Opened, "default threshold is five")
}
