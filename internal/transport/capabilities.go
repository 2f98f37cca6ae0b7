package transport

import "pkt.systems/termbridge/schema"

// CapabilitiesFor returns the capability declaration a backend of kind
// reports, without constructing or connecting a live driver. A live
// instance's Capabilities() method returns the identical value; this lets
// a UI or CLI populate controls (e.g. disable "Send Break" for a TCP
// session) before a session even exists.
func CapabilitiesFor(kind schema.TransportKindTag) schema.TransportCapabilities {
	switch kind {
	case schema.TransportSerial:
		return serialCapabilities
	case schema.TransportTCP:
		return tcpCapabilities
	case schema.TransportTelnet:
		return telnetCapabilities
	case schema.TransportSSH:
		return sshCapabilities
	case schema.TransportBLE:
		return bleCapabilities
	default:
		return schema.TransportCapabilities{}
	}
}

// CheckModemLine short-circuits a SetModemLine command against caps before
// it reaches a driver, returning ErrUnsupported if the backend can't honor
// it.
func CheckModemLine(caps schema.TransportCapabilities) error {
	if !caps.SupportsModemLines {
		return newError(ErrUnsupported, "transport does not support modem control lines")
	}
	return nil
}

// CheckBreak short-circuits a SendBreak command against caps before it
// reaches a driver.
func CheckBreak(caps schema.TransportCapabilities) error {
	if !caps.SupportsBreak {
		return newError(ErrUnsupported, "transport does not support break signaling")
	}
	return nil
}
