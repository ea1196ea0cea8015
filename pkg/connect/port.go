// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package connect builds bidirectional allow-access rule graphs between
// addressable peer groups, including self-referential and mutually
// referential peers, without infinite recursion.
package connect

import "fmt"

type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
	ProtocolAll  Protocol = "-1"
)

// Port is a protocol plus an inclusive port range.
type Port struct {
	Protocol Protocol
	From     int
	To       int
}

func TCP(port int) Port {
	return Port{Protocol: ProtocolTCP, From: port, To: port}
}

func TCPRange(from, to int) Port {
	return Port{Protocol: ProtocolTCP, From: from, To: to}
}

func UDP(port int) Port {
	return Port{Protocol: ProtocolUDP, From: port, To: port}
}

func UDPRange(from, to int) Port {
	return Port{Protocol: ProtocolUDP, From: from, To: to}
}

// ICMP takes the message type; -1 means all types.
func ICMP(messageType int) Port {
	return Port{Protocol: ProtocolICMP, From: messageType, To: messageType}
}

func AllTraffic() Port {
	return Port{Protocol: ProtocolAll, From: 0, To: 65535}
}

func (p Port) String() string {
	if p.Protocol == ProtocolAll {
		return "all"
	}
	if p.From == p.To {
		return fmt.Sprintf("%s/%d", p.Protocol, p.From)
	}
	return fmt.Sprintf("%s/%d-%d", p.Protocol, p.From, p.To)
}

// Validate checks the range against the protocol's valid domain. Called
// at Allow time so callers get immediate feedback, not a render-time
// surprise.
func (p Port) Validate() error {
	switch p.Protocol {
	case ProtocolTCP, ProtocolUDP:
		if p.From < 0 || p.To > 65535 {
			return &InvalidRuleRangeError{Port: p, Reason: "ports must be within 0-65535"}
		}
		if p.From > p.To {
			return &InvalidRuleRangeError{Port: p, Reason: "range start exceeds range end"}
		}
	case ProtocolICMP:
		if p.From < -1 || p.From > 255 || p.From != p.To {
			return &InvalidRuleRangeError{Port: p, Reason: "icmp message type must be -1..255"}
		}
	case ProtocolAll:
		// Range is ignored for the all-traffic protocol.
	default:
		return &InvalidRuleRangeError{Port: p, Reason: fmt.Sprintf("unknown protocol %q", p.Protocol)}
	}
	return nil
}
