package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardTimeIsIST(t *testing.T) {
	now := NewStandardTime().Now()
	_, offset := now.Zone()
	require.Equal(t, 5*60*60+30*60, offset)
}

func TestFakeTime(t *testing.T) {
	start := time.Date(2025, 8, 26, 6, 0, 0, 0, IST())
	clock := NewFakeTime(start)
	clock.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), clock.Now())
}

func TestValidateSpec(t *testing.T) {
	require.NoError(t, ValidateSpec("0 6,18 * * *"))
	require.Error(t, ValidateSpec("every morning"))
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)

	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}
