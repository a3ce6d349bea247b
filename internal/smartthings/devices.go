package smartthings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Device is a SmartThings device summary as returned by the devices listing.
type Device struct {
	DeviceID   string            `json:"deviceId"`
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	LocationID string            `json:"locationId,omitempty"`
	RoomID     string            `json:"roomId,omitempty"`
	Components []DeviceComponent `json:"components,omitempty"`
}

// DeviceComponent is one component of a device with its capabilities.
type DeviceComponent struct {
	ID           string             `json:"id"`
	Capabilities []DeviceCapability `json:"capabilities,omitempty"`
}

// DeviceCapability names one capability a component supports.
type DeviceCapability struct {
	ID      string `json:"id"`
	Version int    `json:"version,omitempty"`
}

// DeviceStatus is the full component status tree of a device. The attribute
// set varies per device, so the tree is kept dynamic.
type DeviceStatus struct {
	Components map[string]map[string]map[string]AttributeValue `json:"components"`
}

// AttributeValue is one capability attribute reading.
type AttributeValue struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// Command is one device command.
type Command struct {
	Component  string        `json:"component"`
	Capability string        `json:"capability"`
	Command    string        `json:"command"`
	Arguments  []interface{} `json:"arguments"`
}

// commandRequest is the POST body for the device commands endpoint.
type commandRequest struct {
	Commands []Command `json:"commands"`
}

// CommandResult is the per-command outcome reported by the platform. The
// commands endpoint may also answer 202 with an empty body; an empty result
// list still means the command was accepted.
type CommandResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Location is a SmartThings location summary.
type Location struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

// Room is a room inside a location.
type Room struct {
	RoomID     string `json:"roomId"`
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

// Scene is a SmartThings scene summary.
type Scene struct {
	SceneID    string `json:"sceneId"`
	SceneName  string `json:"sceneName"`
	LocationID string `json:"locationId,omitempty"`
}

// listEnvelope is the standard SmartThings paged list wrapper.
type listEnvelope[T any] struct {
	Items []T `json:"items"`
}

// ListDevices returns all devices, optionally filtered to those exposing
// the given capability.
func (c *Client) ListDevices(ctx context.Context, capability string) ([]Device, error) {
	path := "/devices"
	if capability != "" {
		path += "?capability=" + url.QueryEscape(capability)
	}
	var resp listEnvelope[Device]
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetDeviceStatus returns the full component status of a device.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) (*DeviceStatus, error) {
	var status DeviceStatus
	path := fmt.Sprintf("/devices/%s/status", url.PathEscape(deviceID))
	if err := c.Do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ExecuteCommand sends a single command to the main component of a device.
// Arguments may be nil for argument-less commands like on/off.
func (c *Client) ExecuteCommand(ctx context.Context, deviceID, capability, command string, arguments []interface{}) ([]CommandResult, error) {
	if arguments == nil {
		arguments = []interface{}{}
	}
	body := commandRequest{
		Commands: []Command{{
			Component:  "main",
			Capability: capability,
			Command:    command,
			Arguments:  arguments,
		}},
	}

	var resp struct {
		Results []CommandResult `json:"results"`
	}
	path := fmt.Sprintf("/devices/%s/commands", url.PathEscape(deviceID))
	if err := c.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ListLocations returns all locations visible to the credential.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var resp listEnvelope[Location]
	if err := c.Do(ctx, http.MethodGet, "/locations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListRooms returns the rooms of a location.
func (c *Client) ListRooms(ctx context.Context, locationID string) ([]Room, error) {
	var resp listEnvelope[Room]
	path := fmt.Sprintf("/locations/%s/rooms", url.PathEscape(locationID))
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListScenes returns all scenes visible to the credential.
func (c *Client) ListScenes(ctx context.Context) ([]Scene, error) {
	var resp listEnvelope[Scene]
	if err := c.Do(ctx, http.MethodGet, "/scenes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ExecuteScene runs a scene.
func (c *Client) ExecuteScene(ctx context.Context, sceneID string) error {
	path := fmt.Sprintf("/scenes/%s/execute", url.PathEscape(sceneID))
	return c.Do(ctx, http.MethodPost, path, nil, nil)
}
