package mockbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types, the first byte of every websocket frame.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// Socket.IO v5 packet types, the first byte inside an Engine.IO message.
const (
	PacketConnect      byte = '0'
	PacketDisconnect   byte = '1'
	PacketEvent        byte = '2'
	PacketAck          byte = '3'
	PacketConnectError byte = '4'
	PacketBinaryEvent  byte = '5'
	PacketBinaryAck    byte = '6'
)

var errEmptyFrame = errors.New("empty frame")

// OpenInfo is the handshake sent by the server in the Engine.IO open packet.
type OpenInfo struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      byte
	Namespace string
	AckID     int64
	HasAck    bool
	Data      json.RawMessage
}

// SplitFrame returns the Engine.IO type and body of a websocket frame.
func SplitFrame(frame []byte) (byte, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, errEmptyFrame
	}
	return frame[0], frame[1:], nil
}

// DecodePacket parses the body of an Engine.IO message frame:
// <type>[<namespace>,][<ack id>][<json>]
func DecodePacket(body []byte) (Packet, error) {
	if len(body) == 0 {
		return Packet{}, errEmptyFrame
	}
	p := Packet{Type: body[0], Namespace: "/"}
	if p.Type < PacketConnect || p.Type > PacketBinaryAck {
		return Packet{}, fmt.Errorf("unknown socket.io packet type %q", p.Type)
	}
	rest := body[1:]

	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, fmt.Errorf("binary socket.io packets are not supported")
	}

	if len(rest) > 0 && rest[0] == '/' {
		end := len(rest)
		for i, ch := range rest {
			if ch == ',' {
				end = i
				break
			}
		}
		p.Namespace = string(rest[:end])
		if end < len(rest) {
			rest = rest[end+1:]
		} else {
			rest = nil
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseInt(string(rest[:digits]), 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID, p.HasAck = id, true
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return Packet{}, fmt.Errorf("invalid socket.io payload")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// Event splits an EVENT packet's data into its name and first argument.
func (p Packet) Event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return "", nil, fmt.Errorf("event payload is not an array: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event payload has no name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("event name is not a string: %w", err)
	}
	if len(args) < 2 {
		return name, nil, nil
	}
	return name, args[1], nil
}

func nsPrefix(ns string) string {
	if ns == "" || ns == "/" {
		return ""
	}
	return ns + ","
}

// EncodeOpen builds the server's Engine.IO open frame.
func EncodeOpen(info OpenInfo) ([]byte, error) {
	b, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return append([]byte{EngineOpen}, b...), nil
}

// EncodeConnect builds a namespace CONNECT frame. data is the client's auth
// payload or the server's {"sid": ...} acknowledgement; nil sends none.
func EncodeConnect(ns string, data any) ([]byte, error) {
	frame := []byte{EngineMessage, PacketConnect}
	frame = append(frame, nsPrefix(ns)...)
	if data == nil {
		return trimNamespaceComma(frame), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(frame, b...), nil
}

// EncodeConnectError builds a CONNECT_ERROR frame. Clients expect a
// non-null data member next to the message.
func EncodeConnectError(ns, message string, data any) ([]byte, error) {
	body := map[string]any{"message": message}
	if data != nil {
		body["data"] = data
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	frame := []byte{EngineMessage, PacketConnectError}
	frame = append(frame, nsPrefix(ns)...)
	return append(frame, b...), nil
}

// EncodeDisconnect builds a namespace DISCONNECT frame.
func EncodeDisconnect(ns string) []byte {
	frame := []byte{EngineMessage, PacketDisconnect}
	return trimNamespaceComma(append(frame, nsPrefix(ns)...))
}

// EncodeEvent builds an EVENT frame carrying one argument.
func EncodeEvent(ns, event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	frame := []byte{EngineMessage, PacketEvent}
	frame = append(frame, nsPrefix(ns)...)
	return append(frame, b...), nil
}

// trimNamespaceComma drops the trailing separator when nothing follows a
// namespace, matching the reference encoder ("40/admin" not "40/admin,").
func trimNamespaceComma(frame []byte) []byte {
	if n := len(frame); n > 0 && frame[n-1] == ',' {
		return frame[:n-1]
	}
	return frame
}
