package bseries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestClientLogin(t *testing.T) {
	wantToken := signedToken(t, time.Now().Add(24*time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, loginPath, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])
		_ = json.NewEncoder(w).Encode(map[string]string{"token": wantToken})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	token, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantToken, token)
	assert.False(t, client.TokenNeedsRefresh())

	stored, err := client.Token()
	require.NoError(t, err)
	assert.Equal(t, wantToken, stored)
}

func TestClientLoginAccessTokenField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-abc"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	token, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestClientLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "wrong", 5*time.Second)
	_, err := client.Login(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestClientTokenNeedsRefreshNearExpiry(t *testing.T) {
	soon := signedToken(t, time.Now().Add(30*time.Minute))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": soon})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	_, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, client.TokenNeedsRefresh())
}

func TestClientDevices(t *testing.T) {
	token := signedToken(t, time.Now().Add(24*time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == loginPath {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
			return
		}
		require.Equal(t, devicesPath, r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id": 7, "serial_number": "AB12CD34", "brand": "COMPUTHERM",
			"type": "B300", "fw_ver": "1.2.3", "device_type": "thermostat", "access_status": "owner"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	_, err := client.Login(context.Background())
	require.NoError(t, err)

	devices, err := client.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 7, devices[0].ID)
	assert.Equal(t, "AB12CD34", devices[0].SerialNumber)
	assert.Equal(t, "B300", devices[0].Type)
}

func TestClientDevicesWithoutLogin(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "user@example.com", "hunter2", time.Second)
	_, err := client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestClientDevicesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == loginPath {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	_, err := client.Login(context.Background())
	require.NoError(t, err)
	_, err = client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientSendCommand(t *testing.T) {
	var got Command
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == loginPath {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
			return
		}
		require.Equal(t, "/api/devices/7/cmd", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user@example.com", "hunter2", 5*time.Second)
	_, err := client.Login(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.SendCommand(context.Background(), 7, SetPointCommand(21.33)))
	assert.Equal(t, 1, got.Relay)
	require.NotNil(t, got.ManualSetPoint)
	assert.Equal(t, 21.3, *got.ManualSetPoint)
}

func TestTokenExpiryUnparseable(t *testing.T) {
	assert.True(t, tokenExpiry("not-a-jwt").IsZero())
}
