package janus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	PluginAudioBridge = "janus.plugin.audiobridge"

	// errNoSuchRoom is the audiobridge error for an unknown room id.
	errNoSuchRoom = 485
)

type request struct {
	Janus       string `json:"janus"`
	Transaction string `json:"transaction"`
	Plugin      string `json:"plugin,omitempty"`
	Body        any    `json:"body,omitempty"`
	APISecret   string `json:"apisecret,omitempty"`
}

type response struct {
	Janus       string `json:"janus"`
	Transaction string `json:"transaction"`
	Data        *struct {
		ID uint64 `json:"id"`
	} `json:"data,omitempty"`
	Error *struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
	PluginData *struct {
		Plugin string          `json:"plugin"`
		Data   json.RawMessage `json:"data"`
	} `json:"plugindata,omitempty"`
}

// pluginResult is the audiobridge reply nested under plugindata.data.
type pluginResult struct {
	AudioBridge string          `json:"audiobridge"`
	Room        json.RawMessage `json:"room,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type createBody struct {
	Request            string `json:"request"`
	Description        string `json:"description"`
	IsPrivate          bool   `json:"is_private"`
	AudioLevelExt      bool   `json:"audiolevel_ext"`
	AudioActivePackets int    `json:"audio_active_packets"`
	AudioLevelAverage  int    `json:"audio_level_average"`
}

type joinBody struct {
	Request string `json:"request"`
	Room    any    `json:"room"`
	ID      string `json:"id"`
	Display string `json:"display"`
	Muted   bool   `json:"muted"`
}

type roomBody struct {
	Request string `json:"request"`
	Room    any    `json:"room"`
	ID      string `json:"id,omitempty"`
}

// PluginError is an error reported by the plugin rather than the gateway.
type PluginError struct {
	Code   int
	Reason string
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("audiobridge error %d: %s", e.Code, e.Reason)
}

// GatewayError is a top level "janus":"error" reply.
type GatewayError struct {
	Code   int
	Reason string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("janus error %d: %s", e.Code, e.Reason)
}

func isNoSuchRoom(err error) bool {
	var pe *PluginError
	return errors.As(err, &pe) && pe.Code == errNoSuchRoom
}

// roomRef renders an external room id the way the plugin expects it: numeric
// ids as numbers, anything else as a string.
func roomRef(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}

func parseRoomID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("reply carries no room id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
