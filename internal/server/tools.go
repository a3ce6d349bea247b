package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_devices",
		mcp.WithDescription("List SmartThings devices, optionally filtered by capability (e.g. 'switch', 'switchLevel', 'colorControl')."),
		mcp.WithString("capability",
			mcp.Description("Only return devices exposing this capability"),
		),
	), s.handleListDevices)

	s.mcpServer.AddTool(mcp.NewTool("get_device_status",
		mcp.WithDescription("Get the full component status of a device, including all capability attribute values."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
	), s.handleGetDeviceStatus)

	s.mcpServer.AddTool(mcp.NewTool("turn_on",
		mcp.WithDescription("Turn a device on via the switch capability."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
	), s.handleTurnOn)

	s.mcpServer.AddTool(mcp.NewTool("turn_off",
		mcp.WithDescription("Turn a device off via the switch capability."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
	), s.handleTurnOff)

	s.mcpServer.AddTool(mcp.NewTool("set_level",
		mcp.WithDescription("Set the dimmer level of a device (0-100) via the switchLevel capability."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
		mcp.WithNumber("level",
			mcp.Required(),
			mcp.Description("Level percentage, 0 to 100"),
		),
	), s.handleSetLevel)

	s.mcpServer.AddTool(mcp.NewTool("set_color_temperature",
		mcp.WithDescription("Set the color temperature of a light in Kelvin via the colorTemperature capability."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
		mcp.WithNumber("kelvin",
			mcp.Required(),
			mcp.Description("Color temperature in Kelvin, typically 2200 to 6500"),
		),
	), s.handleSetColorTemperature)

	s.mcpServer.AddTool(mcp.NewTool("set_color",
		mcp.WithDescription("Set the color of a light via the colorControl capability."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
		mcp.WithNumber("hue",
			mcp.Required(),
			mcp.Description("Hue, 0 to 100"),
		),
		mcp.WithNumber("saturation",
			mcp.Required(),
			mcp.Description("Saturation, 0 to 100"),
		),
	), s.handleSetColor)

	s.mcpServer.AddTool(mcp.NewTool("execute_command",
		mcp.WithDescription("Execute an arbitrary capability command on a device's main component."),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("SmartThings device ID"),
		),
		mcp.WithString("capability",
			mcp.Required(),
			mcp.Description("Capability ID, e.g. 'switch' or 'thermostatMode'"),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command name, e.g. 'on' or 'setThermostatMode'"),
		),
		mcp.WithArray("arguments",
			mcp.Description("Command arguments, in the order the capability defines"),
		),
	), s.handleExecuteCommand)

	s.mcpServer.AddTool(mcp.NewTool("list_locations",
		mcp.WithDescription("List SmartThings locations."),
	), s.handleListLocations)

	s.mcpServer.AddTool(mcp.NewTool("list_rooms",
		mcp.WithDescription("List the rooms of a location."),
		mcp.WithString("location_id",
			mcp.Required(),
			mcp.Description("SmartThings location ID"),
		),
	), s.handleListRooms)

	s.mcpServer.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List SmartThings scenes."),
	), s.handleListScenes)

	s.mcpServer.AddTool(mcp.NewTool("execute_scene",
		mcp.WithDescription("Execute a SmartThings scene."),
		mcp.WithString("scene_id",
			mcp.Required(),
			mcp.Description("SmartThings scene ID"),
		),
	), s.handleExecuteScene)
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	capability := request.GetString("capability", "")

	devices, err := s.api.ListDevices(ctx, capability)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(devices)
}

func (s *Server) handleGetDeviceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, err := s.api.GetDeviceStatus(ctx, deviceID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(status)
}

func (s *Server) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.switchCommand(ctx, request, "on")
}

func (s *Server) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.switchCommand(ctx, request, "off")
}

func (s *Server) switchCommand(ctx context.Context, request mcp.CallToolRequest, command string) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.api.ExecuteCommand(ctx, deviceID, "switch", command, nil); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Device %s turned %s", deviceID, command)), nil
}

func (s *Server) handleSetLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	level, err := request.RequireFloat("level")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if level < 0 || level > 100 {
		return mcp.NewToolResultError("level must be between 0 and 100"), nil
	}

	if _, err := s.api.ExecuteCommand(ctx, deviceID, "switchLevel", "setLevel", []interface{}{int(level)}); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Device %s level set to %d", deviceID, int(level))), nil
}

func (s *Server) handleSetColorTemperature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kelvin, err := request.RequireFloat("kelvin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.api.ExecuteCommand(ctx, deviceID, "colorTemperature", "setColorTemperature", []interface{}{int(kelvin)}); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Device %s color temperature set to %dK", deviceID, int(kelvin))), nil
}

func (s *Server) handleSetColor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hue, err := request.RequireFloat("hue")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	saturation, err := request.RequireFloat("saturation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hue < 0 || hue > 100 || saturation < 0 || saturation > 100 {
		return mcp.NewToolResultError("hue and saturation must be between 0 and 100"), nil
	}

	color := map[string]interface{}{"hue": hue, "saturation": saturation}
	if _, err := s.api.ExecuteCommand(ctx, deviceID, "colorControl", "setColor", []interface{}{color}); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Device %s color set to hue=%.0f saturation=%.0f", deviceID, hue, saturation)), nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	capability, err := request.RequireString("capability")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var arguments []interface{}
	if raw, ok := request.GetArguments()["arguments"]; ok && raw != nil {
		arguments, ok = raw.([]interface{})
		if !ok {
			return mcp.NewToolResultError("arguments must be an array"), nil
		}
	}

	results, err := s.api.ExecuteCommand(ctx, deviceID, capability, command, arguments)
	if err != nil {
		return toolError(err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Command %s.%s accepted by device %s", capability, command, deviceID)), nil
	}
	return jsonResult(results)
}

func (s *Server) handleListLocations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locations, err := s.api.ListLocations(ctx)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(locations)
}

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locationID, err := request.RequireString("location_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rooms, err := s.api.ListRooms(ctx, locationID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(rooms)
}

func (s *Server) handleListScenes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenes, err := s.api.ListScenes(ctx)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(scenes)
}

func (s *Server) handleExecuteScene(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sceneID, err := request.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.api.ExecuteScene(ctx, sceneID); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scene %s executed", sceneID)), nil
}
