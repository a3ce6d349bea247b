package smartthings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIFixture(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:     srv.URL,
		Credentials: &fakeCreds{token: "test-token"},
	})
}

func TestListDevices(t *testing.T) {
	var gotPath, gotQuery string
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("capability")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{"deviceId": "d1", "label": "Desk Lamp", "name": "lamp"},
				{"deviceId": "d2", "label": "Fan", "name": "fan"},
			},
		})
	})

	devices, err := client.ListDevices(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/devices", gotPath)
	assert.Empty(t, gotQuery)
	require.Len(t, devices, 2)
	assert.Equal(t, "d1", devices[0].DeviceID)
	assert.Equal(t, "Desk Lamp", devices[0].Label)
}

func TestListDevicesCapabilityFilter(t *testing.T) {
	var gotQuery string
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("capability")
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	})

	devices, err := client.ListDevices(context.Background(), "switchLevel")
	require.NoError(t, err)
	assert.Equal(t, "switchLevel", gotQuery)
	assert.Empty(t, devices)
}

func TestGetDeviceStatus(t *testing.T) {
	var gotPath string
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"components": map[string]interface{}{
				"main": map[string]interface{}{
					"switch": map[string]interface{}{
						"switch": map[string]interface{}{"value": "on"},
					},
				},
			},
		})
	})

	status, err := client.GetDeviceStatus(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "/devices/dev-1/status", gotPath)
	assert.Equal(t, "on", status.Components["main"]["switch"]["switch"].Value)
}

func TestExecuteCommandPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	})

	results, err := client.ExecuteCommand(context.Background(), "dev-1", "switchLevel", "setLevel", []interface{}{75})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "/devices/dev-1/commands", gotPath)

	want := map[string]interface{}{
		"commands": []interface{}{
			map[string]interface{}{
				"component":  "main",
				"capability": "switchLevel",
				"command":    "setLevel",
				"arguments":  []interface{}{float64(75)},
			},
		},
	}
	assert.Equal(t, want, gotBody)
}

func TestExecuteCommandNilArguments(t *testing.T) {
	var gotBody map[string]interface{}
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.ExecuteCommand(context.Background(), "dev-1", "switch", "on", nil)
	require.NoError(t, err)

	commands := gotBody["commands"].([]interface{})
	cmd := commands[0].(map[string]interface{})
	// The arguments key must be present as an empty array, not null.
	assert.Equal(t, []interface{}{}, cmd["arguments"])
}

func TestExecuteCommandResults(t *testing.T) {
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": "cmd-1", "status": "ACCEPTED"},
			},
		})
	})

	results, err := client.ExecuteCommand(context.Background(), "dev-1", "switch", "on", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ACCEPTED", results[0].Status)
}

func TestListLocationsAndRooms(t *testing.T) {
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/locations":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{{"locationId": "loc-1", "name": "Home"}},
			})
		case "/locations/loc-1/rooms":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{{"roomId": "room-1", "locationId": "loc-1", "name": "Bedroom"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	locations, err := client.ListLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "Home", locations[0].Name)

	rooms, err := client.ListRooms(context.Background(), "loc-1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Bedroom", rooms[0].Name)
}

func TestScenes(t *testing.T) {
	var executed string
	client := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/scenes" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{{"sceneId": "scene-1", "sceneName": "Good Night"}},
			})
		case r.URL.Path == "/scenes/scene-1/execute" && r.Method == http.MethodPost:
			executed = "scene-1"
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	scenes, err := client.ListScenes(context.Background())
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, "Good Night", scenes[0].SceneName)

	require.NoError(t, client.ExecuteScene(context.Background(), "scene-1"))
	assert.Equal(t, "scene-1", executed)
}
