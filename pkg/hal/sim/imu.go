package sim

import (
	"fmt"
	"math"

	"github.com/golang/glog"
	"tinygo.org/x/drivers/tester"
)

// Register map of the simulated inertial sensor.
const (
	IMUChipIDReg = 0x00
	IMUChipID    = 0xA0
	IMUEulerReg  = 0x1A
	IMUTempReg   = 0x34
)

// GlogFailer reports mock bus misuse to glog instead of failing a test.
type GlogFailer struct{}

// Fatal implements tester.Failer.
func (GlogFailer) Fatal(args ...interface{}) {
	glog.ErrorDepth(1, args...)
}

// Fatalf implements tester.Failer.
func (GlogFailer) Fatalf(format string, args ...interface{}) {
	glog.ErrorDepth(1, "i2c: "+fmt.Sprintf(format, args...))
}

// NewBus creates a mock I2C bus which logs misuse.
func NewBus() *tester.I2CBus {
	return tester.NewI2CBus(GlogFailer{})
}

// IMU is a simulated inertial sensor on a mock bus.
type IMU struct {
	dev *tester.I2CDevice8
}

// NewIMU attaches a simulated inertial sensor to bus at addr.
func NewIMU(bus *tester.I2CBus, addr uint8) *IMU {
	imu := &IMU{dev: bus.NewDevice(addr)}
	imu.dev.Registers[IMUChipIDReg] = IMUChipID
	imu.SetTemperature(25)
	return imu
}

// Registers exposes the register file.
func (m *IMU) Registers() *[255]uint8 {
	return &m.dev.Registers
}

// SetEuler stores heading, roll and pitch in degrees.
func (m *IMU) SetEuler(heading, roll, pitch float64) {
	for n, v := range []float64{heading, roll, pitch} {
		raw := uint16(int16(math.Round(v * 16)))
		m.dev.Registers[IMUEulerReg+2*n] = uint8(raw)
		m.dev.Registers[IMUEulerReg+2*n+1] = uint8(raw >> 8)
	}
}

// SetTemperature stores the temperature in degrees Celsius.
func (m *IMU) SetTemperature(c int8) {
	m.dev.Registers[IMUTempReg] = uint8(c)
}

// Unplug makes the device stop answering its chip id.
func (m *IMU) Unplug() {
	m.dev.Registers[IMUChipIDReg] = 0
}
