package serial

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

// Type identifies a kind of serial device.
type Type string

// The known device types.
const (
	TypeUnknown Type = "unknown"
	TypeArduino Type = "arduino"
	TypeUSB     Type = "usb-serial"
)

// arduinoVendorIDs are USB vendor ids of Arduino boards and common clones.
var arduinoVendorIDs = map[string]bool{
	"2341": true, // Arduino LLC
	"2a03": true, // Arduino SRL
	"1a86": true, // QinHeng CH340
}

// Description describes a serial port found on the host.
type Description struct {
	Type    Type
	Path    string
	Product string
}

// OpenDevice opens devicePath as an 8N1 console at baud. A zero baud uses
// DefaultBaudRate.
func OpenDevice(devicePath string, baud int) (io.ReadWriteCloser, error) {
	if devicePath == "" {
		return nil, errors.New("no serial device given")
	}
	options := DefaultOptions()
	if baud != 0 {
		options.BaudRate = baud
	}
	return Open(devicePath, options)
}

// listPorts is a variable in case you need to override it during tests.
var listPorts = enumerator.GetDetailedPortsList

// Search lists the serial ports present on the host.
func Search() ([]Description, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}
	results := make([]Description, 0, len(ports))
	for _, p := range ports {
		results = append(results, describe(p))
	}
	return results, nil
}

func describe(p *enumerator.PortDetails) Description {
	desc := Description{Type: TypeUnknown, Path: p.Name, Product: p.Product}
	if !p.IsUSB {
		return desc
	}
	desc.Type = TypeUSB
	if arduinoVendorIDs[strings.ToLower(p.VID)] {
		desc.Type = TypeArduino
	}
	return desc
}
