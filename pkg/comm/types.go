// Package comm carries framed protobuf messages between the device and
// its operators over packet transports (MQTT, websocket, serial stream).
package comm

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// DeviceInfo is announced by a device when it connects.
type DeviceInfo struct {
	ID      string   `json:"id"`
	Version string   `json:"version,omitempty"`
	Sensors []string `json:"sensors,omitempty"`
}
