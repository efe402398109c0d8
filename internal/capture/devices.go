// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"io"

	"micscope/internal/config"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// paDevicesFunc is swapped in tests.
var paDevicesFunc = portaudio.Devices

// Initialize sets up the PortAudio subsystem. It must be paired with
// Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns every device PortAudio reports.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}
	return devices, nil
}

// InputDevice returns the device for deviceID, or the system default
// input for config.MinDeviceID.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if deviceID < 0 || deviceID >= len(infos) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if infos[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", deviceID, infos[deviceID].Name)
	}
	return infos[deviceID], nil
}

// ListDevices writes the input-capable devices to w.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Input Devices\n\n")
	found := 0
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		found++
		fmt.Fprintf(w, "[%d] %s\n", d.ID, d.Name)
		fmt.Fprintf(w, "    Input channels: %d\n", d.MaxInputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n\n", d.DefaultSampleRate)
	}
	if found == 0 {
		fmt.Fprintln(w, "No input devices found.")
	}
	return nil
}
