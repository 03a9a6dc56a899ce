package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSim(t *testing.T) {
	c := NewSim()
	require.Equal(t, Epoch, c.Now())
	require.Equal(t, Epoch, c.Now())
	c.Sleep(time.Second)
	require.Equal(t, Epoch.Add(time.Second), c.Now())
	c.Advance(-time.Second)
	require.Equal(t, time.Second, c.Elapsed())
}

func TestSimStep(t *testing.T) {
	c := NewSim().WithStep(time.Millisecond)
	require.Equal(t, Epoch, c.Now())
	require.Equal(t, Epoch.Add(time.Millisecond), c.Now())
	require.Equal(t, 2*time.Millisecond, c.Elapsed())
}
