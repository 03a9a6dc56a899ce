// Package bno055 drives a BNO055 absolute orientation sensor on a shared bus.
package bno055

import (
	"fmt"
	"time"

	"github.com/robotalks/picobot/pkg/bus"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/sensor"
)

// Bus addresses, selected by the COM3 pin.
const (
	AddressA uint16 = 0x28
	AddressB uint16 = 0x29
)

// ChipID is the content of the chip id register.
const ChipID = 0xA0

// Registers of page 0.
const (
	regChipID     = 0x00
	regPageID     = 0x07
	regEulerH     = 0x1A
	regTemp       = 0x34
	regUnitSel    = 0x3B
	regOprMode    = 0x3D
	regPwrMode    = 0x3E
	regSysTrigger = 0x3F
)

// Operation modes.
const (
	ModeConfig byte = 0x00
	ModeNDOF   byte = 0x0C
)

const (
	powerNormal  byte = 0x00
	triggerReset byte = 0x20
	// degrees, Celsius, m/s², Windows orientation
	unitsDefault byte = 0x00
)

// Settling delays from the datasheet.
const (
	ConfigSettle = 20 * time.Millisecond
	ResetSettle  = 650 * time.Millisecond
	PowerSettle  = 10 * time.Millisecond
	ModeSettle   = 20 * time.Millisecond
	pingInterval = 10 * time.Millisecond
)

// Euler is the fused orientation in degrees.
type Euler struct {
	Heading float64
	Roll    float64
	Pitch   float64
}

// Device is a BNO055 on an AsyncBus.
type Device struct {
	Bus      *bus.AsyncBus
	Address  uint16
	Log      logging.Sink
	Timeouts *sensor.Counter
}

// New creates a Device.
func New(b *bus.AsyncBus, addr uint16) *Device {
	return &Device{Bus: b, Address: addr, Timeouts: sensor.NewCounter("bno055")}
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("bno055(%s, %#x)", d.Bus.Name, d.Address)
}

func (d *Device) chipID(co *framework.Co) (byte, error) {
	buf := make([]byte, 1)
	err := d.Bus.With(co, func(h *bus.Handle) error {
		return h.ReadRegister(d.Address, regChipID, buf)
	})
	return buf[0], err
}

// Ping checks the chip id.
func (d *Device) Ping(co *framework.Co) (bool, error) {
	id, err := d.chipID(co)
	if err != nil {
		return false, err
	}
	if id != ChipID {
		logging.Or(d.Log).Errorf("ping failed on %s, chip id %#x", d, id)
		return false, nil
	}
	return true, nil
}

func (d *Device) write(co *framework.Co, reg uint8, value byte) error {
	return d.Bus.With(co, func(h *bus.Handle) error {
		return h.WriteRegister(d.Address, reg, value)
	})
}

// SetMode switches the operation mode and waits for it to settle.
func (d *Device) SetMode(co *framework.Co, mode byte) error {
	if err := d.write(co, regOprMode, mode); err != nil {
		return err
	}
	settle := ModeSettle
	if mode == ModeConfig {
		settle = ConfigSettle
	}
	_, err := co.Sleep(settle)
	return err
}

// WaitPresent polls the chip id until it answers or deadline elapses.
func (d *Device) WaitPresent(co *framework.Co, deadline time.Duration) error {
	end := co.Now().Add(deadline)
	for {
		id, err := d.chipID(co)
		if err == nil && id == ChipID {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("chip id %#x", id)
		}
		if !co.Now().Before(end) {
			d.Timeouts.Inc()
			return &sensor.TimeoutError{Op: d.String() + " presence", Err: err}
		}
		if _, err := co.Sleep(pingInterval); err != nil {
			return err
		}
	}
}

// Init resets the sensor into fusion mode.
// Each register write holds the bus only for the write itself.
func (d *Device) Init(co *framework.Co, deadline time.Duration) error {
	if err := d.WaitPresent(co, deadline); err != nil {
		return err
	}
	if err := d.SetMode(co, ModeConfig); err != nil {
		return err
	}
	if err := d.write(co, regSysTrigger, triggerReset); err != nil {
		return err
	}
	if _, err := co.Sleep(ResetSettle); err != nil {
		return err
	}
	if err := d.WaitPresent(co, deadline); err != nil {
		return err
	}
	if err := d.write(co, regPwrMode, powerNormal); err != nil {
		return err
	}
	if _, err := co.Sleep(PowerSettle); err != nil {
		return err
	}
	if err := d.write(co, regPageID, 0); err != nil {
		return err
	}
	if err := d.write(co, regUnitSel, unitsDefault); err != nil {
		return err
	}
	if err := d.write(co, regSysTrigger, 0); err != nil {
		return err
	}
	if err := d.SetMode(co, ModeNDOF); err != nil {
		return err
	}
	logging.Or(d.Log).Infof("%s ready", d)
	return nil
}

// ReadEuler reads the fused orientation.
func (d *Device) ReadEuler(co *framework.Co) (Euler, error) {
	buf := make([]byte, 6)
	err := d.Bus.With(co, func(h *bus.Handle) error {
		return h.ReadRegister(d.Address, regEulerH, buf)
	})
	if err != nil {
		return Euler{}, err
	}
	angle := func(n int) float64 {
		return float64(int16(uint16(buf[n])|uint16(buf[n+1])<<8)) / 16
	}
	return Euler{Heading: angle(0), Roll: angle(2), Pitch: angle(4)}, nil
}

// ReadTemperature reads the temperature in degrees Celsius.
func (d *Device) ReadTemperature(co *framework.Co) (int8, error) {
	buf := make([]byte, 1)
	err := d.Bus.With(co, func(h *bus.Handle) error {
		return h.ReadRegister(d.Address, regTemp, buf)
	})
	return int8(buf[0]), err
}
