package bseries

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Minimal socket.io v4 framing for the vendor's /devices namespace. Only the
// frames the cloud actually emits are handled; anything else is reported as
// an unknown frame and ignored by the stream.

const (
	framePing       = "2"
	framePong       = "3"
	frameDisconnect = "1"

	nsEventPrefix      = "42/devices"
	nsConnectPrefix    = "40/devices"
	nsDisconnectPrefix = "41/devices"
)

var (
	errNotNamespaceEvent = errors.New("bseries: not a /devices event frame")
	errBadEventShape     = errors.New("bseries: event frame is not a 2-element array")
)

type handshake struct {
	SID                string `json:"sid"`
	PingIntervalMillis int    `json:"pingInterval"`
	PingTimeoutMillis  int    `json:"pingTimeout"`
}

// decodeHandshake parses the "0{...}" open packet sent right after connect.
func decodeHandshake(frame string) (*handshake, error) {
	if !strings.HasPrefix(frame, "0") || strings.HasPrefix(frame, nsConnectPrefix) {
		return nil, fmt.Errorf("bseries: unexpected initial frame %q", frame)
	}
	var hs handshake
	if err := json.Unmarshal([]byte(frame[1:]), &hs); err != nil {
		return nil, fmt.Errorf("bseries: decode handshake: %w", err)
	}
	if hs.PingIntervalMillis <= 0 {
		hs.PingIntervalMillis = 25000
	}
	return &hs, nil
}

func loginFrame(accessToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"accessToken": accessToken})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s,%s", nsConnectPrefix, payload), nil
}

func subscribeFrame(serials []string) (string, error) {
	payload, err := json.Marshal([]any{"subscribe", serials})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s,%s", nsEventPrefix, payload), nil
}

func scanFrame(serial string) (string, error) {
	// the cmd argument is itself a JSON document passed as a string
	inner, err := json.Marshal(map[string]string{
		"serial_number": serial,
		"cmd":           "scan",
	})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal([]any{"cmd", string(inner)})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s,%s", nsEventPrefix, payload), nil
}

// namespaceMessage is one decoded "42/devices,[kind, data]" frame.
type namespaceMessage struct {
	Kind string
	Data json.RawMessage
}

func decodeNamespaceMessage(frame string) (*namespaceMessage, error) {
	rest, ok := strings.CutPrefix(frame, nsEventPrefix+",")
	if !ok {
		return nil, errNotNamespaceEvent
	}
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &parts); err != nil {
		return nil, fmt.Errorf("bseries: decode event frame: %w", err)
	}
	if len(parts) != 2 {
		return nil, errBadEventShape
	}
	var kind string
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return nil, fmt.Errorf("bseries: decode event kind: %w", err)
	}
	return &namespaceMessage{Kind: kind, Data: parts[1]}, nil
}

type exceptionMessage struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// isForbidden reports whether an "exception" payload is the cloud revoking
// the session, which requires a token refresh before reconnecting.
func (e exceptionMessage) isForbidden() bool {
	return e.Status == "error" && e.Message == "Forbidden resource"
}

func decodeException(data json.RawMessage) exceptionMessage {
	var exc exceptionMessage
	_ = json.Unmarshal(data, &exc)
	return exc
}

// looksLikeAuthFailure is a coarse check applied to the namespace connect
// response, which is not JSON-stable across error cases.
func looksLikeAuthFailure(frame string) bool {
	return strings.Contains(frame, "\"error\"") || strings.Contains(frame, "\"exception\"") ||
		strings.Contains(frame, "Forbidden")
}
