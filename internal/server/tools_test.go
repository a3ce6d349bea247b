package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
	"github.com/asleep-ai/smartthings-mcp/internal/smartthings"
)

// fakeAPI records tool handler calls and plays back scripted results.
type fakeAPI struct {
	devices   []smartthings.Device
	status    *smartthings.DeviceStatus
	locations []smartthings.Location
	rooms     []smartthings.Room
	scenes    []smartthings.Scene
	err       error

	gotCapabilityFilter string
	gotDeviceID         string
	gotCommand          smartthings.Command
	executedScene       string
}

func (f *fakeAPI) ListDevices(ctx context.Context, capability string) ([]smartthings.Device, error) {
	f.gotCapabilityFilter = capability
	return f.devices, f.err
}

func (f *fakeAPI) GetDeviceStatus(ctx context.Context, deviceID string) (*smartthings.DeviceStatus, error) {
	f.gotDeviceID = deviceID
	return f.status, f.err
}

func (f *fakeAPI) ExecuteCommand(ctx context.Context, deviceID, capability, command string, arguments []interface{}) ([]smartthings.CommandResult, error) {
	f.gotDeviceID = deviceID
	f.gotCommand = smartthings.Command{
		Component:  "main",
		Capability: capability,
		Command:    command,
		Arguments:  arguments,
	}
	return nil, f.err
}

func (f *fakeAPI) ListLocations(ctx context.Context) ([]smartthings.Location, error) {
	return f.locations, f.err
}

func (f *fakeAPI) ListRooms(ctx context.Context, locationID string) ([]smartthings.Room, error) {
	return f.rooms, f.err
}

func (f *fakeAPI) ListScenes(ctx context.Context) ([]smartthings.Scene, error) {
	return f.scenes, f.err
}

func (f *fakeAPI) ExecuteScene(ctx context.Context, sceneID string) error {
	f.executedScene = sceneID
	return f.err
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "content is not text")
	return text.Text
}

func TestListDevicesTool(t *testing.T) {
	api := &fakeAPI{devices: []smartthings.Device{
		{DeviceID: "d1", Label: "Desk Lamp"},
	}}
	s := New(api, "test")

	result, err := s.handleListDevices(context.Background(), callRequest(map[string]interface{}{
		"capability": "switch",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "switch", api.gotCapabilityFilter)

	var devices []smartthings.Device
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "Desk Lamp", devices[0].Label)
}

func TestGetDeviceStatusTool(t *testing.T) {
	api := &fakeAPI{status: &smartthings.DeviceStatus{
		Components: map[string]map[string]map[string]smartthings.AttributeValue{
			"main": {"switch": {"switch": {Value: "on"}}},
		},
	}}
	s := New(api, "test")

	result, err := s.handleGetDeviceStatus(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "d1", api.gotDeviceID)
	assert.Contains(t, resultText(t, result), `"on"`)
}

func TestGetDeviceStatusToolMissingArgument(t *testing.T) {
	s := New(&fakeAPI{}, "test")

	result, err := s.handleGetDeviceStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestTurnOnTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleTurnOn(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "switch", api.gotCommand.Capability)
	assert.Equal(t, "on", api.gotCommand.Command)
}

func TestTurnOffTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleTurnOff(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "off", api.gotCommand.Command)
}

func TestSetLevelTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleSetLevel(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
		"level":     float64(75),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "switchLevel", api.gotCommand.Capability)
	assert.Equal(t, "setLevel", api.gotCommand.Command)
	assert.Equal(t, []interface{}{75}, api.gotCommand.Arguments)
}

func TestSetLevelToolRejectsOutOfRange(t *testing.T) {
	s := New(&fakeAPI{}, "test")

	result, err := s.handleSetLevel(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
		"level":     float64(150),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSetColorTemperatureTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleSetColorTemperature(context.Background(), callRequest(map[string]interface{}{
		"device_id": "d1",
		"kelvin":    float64(3500),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "colorTemperature", api.gotCommand.Capability)
	assert.Equal(t, []interface{}{3500}, api.gotCommand.Arguments)
}

func TestSetColorTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleSetColor(context.Background(), callRequest(map[string]interface{}{
		"device_id":  "d1",
		"hue":        float64(30),
		"saturation": float64(80),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "colorControl", api.gotCommand.Capability)
	assert.Equal(t, "setColor", api.gotCommand.Command)
	require.Len(t, api.gotCommand.Arguments, 1)
	color := api.gotCommand.Arguments[0].(map[string]interface{})
	assert.Equal(t, float64(30), color["hue"])
	assert.Equal(t, float64(80), color["saturation"])
}

func TestExecuteCommandTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleExecuteCommand(context.Background(), callRequest(map[string]interface{}{
		"device_id":  "d1",
		"capability": "thermostatMode",
		"command":    "setThermostatMode",
		"arguments":  []interface{}{"cool"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "thermostatMode", api.gotCommand.Capability)
	assert.Equal(t, []interface{}{"cool"}, api.gotCommand.Arguments)
}

func TestExecuteSceneTool(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "test")

	result, err := s.handleExecuteScene(context.Background(), callRequest(map[string]interface{}{
		"scene_id": "scene-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "scene-1", api.executedScene)
}

func TestToolErrorAuthGuidance(t *testing.T) {
	api := &fakeAPI{err: oauth.ErrReauthRequired}
	s := New(api, "test")

	result, err := s.handleListDevices(context.Background(), callRequest(nil))
	require.NoError(t, err, "tool failures must stay in-band")
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "smartthings-mcp login")
}

func TestToolErrorMessages(t *testing.T) {
	tests := []struct {
		kind smartthings.ErrorKind
		want string
	}{
		{smartthings.KindAuth, "login"},
		{smartthings.KindNotFound, "list_devices"},
		{smartthings.KindRateLimited, "rate limit"},
		{smartthings.KindValidation, "capability"},
		{smartthings.KindForbidden, "scopes"},
	}
	for _, tt := range tests {
		api := &fakeAPI{err: &smartthings.APIError{Kind: tt.kind, StatusCode: 400}}
		s := New(api, "test")

		result, err := s.handleGetDeviceStatus(context.Background(), callRequest(map[string]interface{}{
			"device_id": "d1",
		}))
		require.NoError(t, err)
		require.True(t, result.IsError, "kind %s", tt.kind)
		assert.Contains(t, resultText(t, result), tt.want, "kind %s", tt.kind)
	}
}
