package bluez

import (
	"fmt"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// DefaultVersion - AVDTP version reported for a found service,
// BlueZ keeps the SDP record but not the parsed version
const DefaultVersion uint16 = 0x0103

type Discovery struct {
	// OnResult receives the search result of the handle
	OnResult func(handle uint8, found bool, version uint16)

	bus     Bus
	adapter string
	log     zerolog.Logger
}

func NewDiscovery(bus Bus, adapter string, log zerolog.Logger) *Discovery {
	return &Discovery{bus: bus, adapter: adapter, log: log}
}

// Search looks up the peer service in the background
func (d *Discovery) Search(handle uint8, peer string, service a2dp.Role) error {
	if d.OnResult == nil {
		return fmt.Errorf("bluez: no result handler")
	}

	go func() {
		found, err := d.Lookup(peer, service)
		if err != nil {
			d.log.Debug().Err(err).Msgf("[bluez] search %s", peer)
		}

		var version uint16
		if found {
			version = DefaultVersion
		}
		d.OnResult(handle, found, version)
	}()

	return nil
}

// Lookup - peer advertises the audio service of the role
func (d *Discovery) Lookup(peer string, service a2dp.Role) (bool, error) {
	uuid := AudioSinkUUID
	if service == a2dp.RoleSource {
		uuid = AudioSourceUUID
	}

	obj := d.bus.Object(bluezService, DevicePath(d.adapter, peer))

	var v dbus.Variant
	if call := obj.Call(propsIface+".Get", 0, deviceIface, "UUIDs"); call.Err != nil {
		return false, fmt.Errorf("bluez: get UUIDs: %w", call.Err)
	} else if err := call.Store(&v); err != nil {
		return false, fmt.Errorf("bluez: decode UUIDs: %w", err)
	}

	uuids, _ := v.Value().([]string)
	return containsUUID(uuids, uuid), nil
}

// Devices - addresses of known devices with the audio service of the role
func (d *Discovery) Devices(service a2dp.Role) ([]string, error) {
	uuid := AudioSinkUUID
	if service == a2dp.RoleSource {
		uuid = AudioSourceUUID
	}

	obj := d.bus.Object(bluezService, "/")

	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if call := obj.Call(objManagerIface+".GetManagedObjects", 0); call.Err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", call.Err)
	} else if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode GetManagedObjects: %w", err)
	}

	var addrs []string
	for path, ifaces := range objs {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		uuids, _ := props["UUIDs"].Value().([]string)
		if !containsUUID(uuids, uuid) {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		if addr == "" {
			addr = AddrFromPath(path)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
