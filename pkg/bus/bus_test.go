package bus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/tester"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
)

const devAddr = 0x28

func newTestBus(t *testing.T) (*AsyncBus, *tester.I2CDevice8) {
	i2c := tester.NewI2CBus(t)
	dev := i2c.NewDevice(devAddr)
	return New("i2c1", NewSoftLock(i2c)), dev
}

func newTestLoop() (*framework.Loop, *logging.Recorder) {
	l := framework.NewLoop(clock.NewSim())
	rec := &logging.Recorder{}
	l.Log = rec
	return l, rec
}

func TestMutualExclusion(t *testing.T) {
	b, _ := newTestBus(t)
	l, _ := newTestLoop()
	holders, maxHolders, entered := 0, 0, 0
	for n := 0; n < 3; n++ {
		l.Spawn(fmt.Sprintf("user%d", n), func(co *framework.Co) error {
			for i := 0; i < 3; i++ {
				err := b.With(co, func(h *Handle) error {
					holders++
					entered++
					if holders > maxHolders {
						maxHolders = holders
					}
					for y := 0; y < 2; y++ {
						if _, err := co.Yield(); err != nil {
							return err
						}
					}
					holders--
					return nil
				})
				if err != nil {
					return err
				}
				co.Yield()
			}
			return nil
		})
	}
	require.NoError(t, l.RunUntilComplete())
	require.Equal(t, 1, maxHolders)
	require.Equal(t, 9, entered)
	require.True(t, b.Bus.TryLock())
}

func TestReleaseOnFailure(t *testing.T) {
	b, _ := newTestBus(t)
	l, rec := newTestLoop()
	var acquired bool
	l.Spawn("failing", func(co *framework.Co) error {
		return b.With(co, func(*Handle) error {
			co.Yield()
			return errors.New("nack")
		})
	})
	l.Spawn("panicking", func(co *framework.Co) error {
		return b.With(co, func(*Handle) error {
			panic("bus fault")
		})
	})
	l.Spawn("waiting", func(co *framework.Co) error {
		co.Sleep(time.Millisecond)
		h, err := b.Acquire(co)
		if err != nil {
			return err
		}
		acquired = true
		h.Release()
		return nil
	})
	require.NoError(t, l.RunUntilComplete())
	require.True(t, acquired)
	require.Len(t, rec.At(logging.Error), 2)
}

func TestReleaseOnAbort(t *testing.T) {
	b, _ := newTestBus(t)
	l, _ := newTestLoop()
	l.Spawn("holder", func(co *framework.Co) error {
		return b.With(co, func(*Handle) error {
			_, err := co.Sleep(time.Hour)
			return err
		})
	})
	l.Spawn("stopper", func(co *framework.Co) error {
		co.Sleep(time.Second)
		l.Stop()
		return nil
	})
	require.NoError(t, l.RunUntilComplete())
	require.True(t, b.Bus.TryLock())
}

func TestHandleRegisters(t *testing.T) {
	b, dev := newTestBus(t)
	dev.Registers[0x00] = 0xA0
	h, ok := b.TryAcquire()
	require.True(t, ok)
	_, ok = b.TryAcquire()
	require.False(t, ok)

	buf := make([]byte, 1)
	require.NoError(t, h.ReadRegister(devAddr, 0x00, buf))
	require.Equal(t, byte(0xA0), buf[0])
	require.NoError(t, h.WriteRegister(devAddr, 0x3D, 0x0C))
	require.Equal(t, uint8(0x0C), dev.Registers[0x3D])

	h.Release()
	h.Release()
	assert.True(t, h.Released())
	require.Equal(t, ErrReleased, h.Tx(devAddr, []byte{0}, buf))

	h2, ok := b.TryAcquire()
	require.True(t, ok)
	h2.Release()
}
