package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

func TestReconnectScheduler_ConstantInterval(t *testing.T) {
	s := NewReconnectScheduler(5 * time.Second)

	for i := 1; i <= 50; i++ {
		assert.Equal(t, 5*time.Second, s.NextDelay())
		assert.Equal(t, i, s.Attempts())
	}
	assert.Equal(t, 5*time.Second, s.Interval())
}

func TestReconnectScheduler_DefaultInterval(t *testing.T) {
	assert.Equal(t, domain.DefaultReconnectInterval, NewReconnectScheduler(0).Interval())
	assert.Equal(t, domain.DefaultReconnectInterval, NewReconnectScheduler(-time.Second).Interval())
}
