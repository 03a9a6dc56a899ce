package stream

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/tarm/serial"
)

// DefaultBaud is used when the URL has no baud parameter.
const DefaultBaud = 115200

// OpenSerial opens a serial port from a URL like serial:///dev/ttyACM0?baud=9600.
func OpenSerial(rawURL string) (*ReadWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "serial" {
		return nil, fmt.Errorf("not a serial URL: %q", rawURL)
	}
	conf := &serial.Config{Name: u.Path, Baud: DefaultBaud}
	if val := u.Query().Get("baud"); val != "" {
		if conf.Baud, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid baud %q: %v", val, err)
		}
	}
	port, err := serial.OpenPort(conf)
	if err != nil {
		return nil, err
	}
	return New(port), nil
}
