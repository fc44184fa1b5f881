package bseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHandshake(t *testing.T) {
	hs, err := decodeHandshake(`0{"sid":"abc123","pingInterval":25000,"pingTimeout":20000}`)
	require.NoError(t, err)
	assert.Equal(t, "abc123", hs.SID)
	assert.Equal(t, 25000, hs.PingIntervalMillis)
}

func TestDecodeHandshakeDefaultsPingInterval(t *testing.T) {
	hs, err := decodeHandshake(`0{"sid":"abc123"}`)
	require.NoError(t, err)
	assert.Equal(t, 25000, hs.PingIntervalMillis)
}

func TestDecodeHandshakeRejectsOtherFrames(t *testing.T) {
	_, err := decodeHandshake(`40/devices,{"sid":"x"}`)
	assert.Error(t, err)
	_, err = decodeHandshake(`2`)
	assert.Error(t, err)
}

func TestLoginFrame(t *testing.T) {
	frame, err := loginFrame("tok123")
	require.NoError(t, err)
	assert.Equal(t, `40/devices,{"accessToken":"tok123"}`, frame)
}

func TestSubscribeFrame(t *testing.T) {
	frame, err := subscribeFrame([]string{"AB12", "CD34"})
	require.NoError(t, err)
	assert.Equal(t, `42/devices,["subscribe",["AB12","CD34"]]`, frame)
}

func TestScanFrame(t *testing.T) {
	frame, err := scanFrame("AB12")
	require.NoError(t, err)
	assert.Equal(t, `42/devices,["cmd","{\"cmd\":\"scan\",\"serial_number\":\"AB12\"}"]`, frame)
}

func TestDecodeNamespaceMessageEvent(t *testing.T) {
	msg, err := decodeNamespaceMessage(`42/devices,["event",{"serial_number":"AB12","online":true}]`)
	require.NoError(t, err)
	assert.Equal(t, "event", msg.Kind)
	assert.JSONEq(t, `{"serial_number":"AB12","online":true}`, string(msg.Data))
}

func TestDecodeNamespaceMessageException(t *testing.T) {
	msg, err := decodeNamespaceMessage(`42/devices,["exception",{"status":"error","message":"Forbidden resource"}]`)
	require.NoError(t, err)
	assert.Equal(t, "exception", msg.Kind)
	exc := decodeException(msg.Data)
	assert.True(t, exc.isForbidden())
}

func TestDecodeNamespaceMessageRejectsOtherFrames(t *testing.T) {
	_, err := decodeNamespaceMessage(`2`)
	assert.ErrorIs(t, err, errNotNamespaceEvent)
	_, err = decodeNamespaceMessage(`42/devices,["oneonly"]`)
	assert.ErrorIs(t, err, errBadEventShape)
}

func TestLooksLikeAuthFailure(t *testing.T) {
	assert.True(t, looksLikeAuthFailure(`40/devices,{"error":"bad token"}`))
	assert.True(t, looksLikeAuthFailure(`42/devices,["exception",{"message":"Forbidden resource"}]`))
	assert.False(t, looksLikeAuthFailure(`40/devices,{"sid":"abc"}`))
}
