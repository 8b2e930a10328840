package listener

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioUpgrade = '5'
	eioNoop    = '6'
)

// Socket.IO v5 packet types, carried inside Engine.IO messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

const defaultNamespace = "/"

// sioPacket is a parsed Socket.IO packet.
type sioPacket struct {
	Type      byte
	Namespace string
	AckID     int // -1 when absent
	Data      json.RawMessage
}

// parseSIO parses the part of an Engine.IO message after the '4'.
// Format: <type>[<attachments>-][<namespace>,][<ack id>][<json>]
func parseSIO(s string) (sioPacket, error) {
	p := sioPacket{Namespace: defaultNamespace, AckID: -1}
	if s == "" {
		return p, fmt.Errorf("%w: empty socket.io packet", ErrMalformed)
	}
	p.Type = s[0]
	rest := s[1:]

	if p.Type == '5' || p.Type == '6' {
		return p, fmt.Errorf("%w: binary packets are not supported", ErrMalformed)
	}

	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:end]
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(rest[:i])
		if err != nil {
			return p, fmt.Errorf("%w: ack id: %w", ErrMalformed, err)
		}
		p.AckID = id
		rest = rest[i:]
	}

	if rest != "" {
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// eventArgs splits an EVENT payload into its name and first argument.
func eventArgs(data json.RawMessage) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("%w: event payload is not an array: %w", ErrMalformed, err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: event without name", ErrMalformed)
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name is not a string", ErrMalformed)
	}
	var payload json.RawMessage
	if len(args) > 1 {
		payload = args[1]
	}
	return name, payload, nil
}

// encodeSIO builds an Engine.IO message carrying a Socket.IO packet.
func encodeSIO(typ byte, namespace string, ackID int, data any) (string, error) {
	var b strings.Builder
	b.WriteByte(eioMessage)
	b.WriteByte(typ)
	if namespace != "" && namespace != defaultNamespace {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
	if ackID >= 0 {
		b.WriteString(strconv.Itoa(ackID))
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		b.Write(raw)
	}
	return b.String(), nil
}
