// Package bluez adapts the stream engine to BlueZ over the system D-Bus:
// service discovery of the peer and audio back-end notifications.
package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService    = "org.bluez"
	deviceIface     = "org.bluez.Device1"
	propsIface      = "org.freedesktop.DBus.Properties"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"

	AudioSourceUUID = "0000110a-0000-1000-8000-00805f9b34fb"
	AudioSinkUUID   = "0000110b-0000-1000-8000-00805f9b34fb"
)

// Bus - part of *dbus.Conn used by the adapters
type Bus interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// Connect to the system bus, the returned func closes it
func Connect() (*dbus.Conn, func(), error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	return conn, func() { _ = conn.Close() }, nil
}

// DevicePath - `/org/bluez/hci0` + `00:11:22:33:44:55` => `/org/bluez/hci0/dev_00_11_22_33_44_55`
func DevicePath(adapter, addr string) dbus.ObjectPath {
	return dbus.ObjectPath(adapter + "/dev_" + strings.ToUpper(strings.ReplaceAll(addr, ":", "_")))
}

// AddrFromPath - reverse of DevicePath, empty for non device paths
func AddrFromPath(p dbus.ObjectPath) string {
	s := string(p)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+5:], "_", ":")
}

func containsUUID(list []string, target string) bool {
	for _, s := range list {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}
