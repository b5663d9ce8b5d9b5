package anode

import "context"

// Convenience wrappers mapping device automation actions onto CallTool.
// Each one is a mechanical (name, argument record) instantiation of the
// generic tool-call facade; results follow CallTool's unwrapping rule.

// Screenshot captures the current screen.
func (c *Client) Screenshot(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "screenshot", nil)
}

// GetScreenSize returns the screen dimensions.
func (c *Client) GetScreenSize(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "get_screen_size", nil)
}

// DumpUI returns the current UI hierarchy.
func (c *Client) DumpUI(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "dump_ui", nil)
}

// Tap taps the screen at the given coordinates.
func (c *Client) Tap(ctx context.Context, x, y int) (any, error) {
	return c.CallTool(ctx, "tap", map[string]any{"x": x, "y": y})
}

// DoubleTap double-taps the screen at the given coordinates.
func (c *Client) DoubleTap(ctx context.Context, x, y int) (any, error) {
	return c.CallTool(ctx, "double_tap", map[string]any{"x": x, "y": y})
}

// LongPress presses and holds at the given coordinates for durationMS.
func (c *Client) LongPress(ctx context.Context, x, y, durationMS int) (any, error) {
	return c.CallTool(ctx, "long_press", map[string]any{"x": x, "y": y, "duration": durationMS})
}

// Swipe performs a swipe gesture between two points over durationMS.
func (c *Client) Swipe(ctx context.Context, x1, y1, x2, y2, durationMS int) (any, error) {
	return c.CallTool(ctx, "swipe", map[string]any{
		"x1": x1, "y1": y1, "x2": x2, "y2": y2, "duration": durationMS,
	})
}

// InputText types the given text into the focused element.
func (c *Client) InputText(ctx context.Context, text string) (any, error) {
	return c.CallTool(ctx, "input_text", map[string]any{"text": text})
}

// PressKey presses a key by its code.
func (c *Client) PressKey(ctx context.Context, keycode int) (any, error) {
	return c.CallTool(ctx, "press_key", map[string]any{"keycode": keycode})
}

// Back presses the back button.
func (c *Client) Back(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "back", nil)
}

// Home presses the home button.
func (c *Client) Home(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "home", nil)
}

// RecentApps opens the recent apps view.
func (c *Client) RecentApps(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "recent_apps", nil)
}

// OpenNotifications opens the notification shade.
func (c *Client) OpenNotifications(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "open_notifications", nil)
}

// StartApp launches an app by package name.
func (c *Client) StartApp(ctx context.Context, pkg string) (any, error) {
	return c.CallTool(ctx, "start_app", map[string]any{"package": pkg})
}

// StopApp force-stops an app by package name.
func (c *Client) StopApp(ctx context.Context, pkg string) (any, error) {
	return c.CallTool(ctx, "stop_app", map[string]any{"package": pkg})
}

// ListApps lists installed apps.
func (c *Client) ListApps(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "list_apps", nil)
}

// CurrentApp returns the foreground app.
func (c *Client) CurrentApp(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "current_app", nil)
}

// InstallApp installs an APK from a path on the device.
func (c *Client) InstallApp(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "install_app", map[string]any{"path": path})
}

// UninstallApp removes an app by package name.
func (c *Client) UninstallApp(ctx context.Context, pkg string) (any, error) {
	return c.CallTool(ctx, "uninstall_app", map[string]any{"package": pkg})
}

// ListFiles lists the entries of a directory on the device.
func (c *Client) ListFiles(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "list_files", map[string]any{"path": path})
}

// ReadFile reads a file from the device.
func (c *Client) ReadFile(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "read_file", map[string]any{"path": path})
}

// WriteFile writes content to a file on the device.
func (c *Client) WriteFile(ctx context.Context, path, content string) (any, error) {
	return c.CallTool(ctx, "write_file", map[string]any{"path": path, "content": content})
}

// DeleteFile removes a file from the device.
func (c *Client) DeleteFile(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "delete_file", map[string]any{"path": path})
}

// PushFile uploads base64-encoded content to a path on the device.
func (c *Client) PushFile(ctx context.Context, path, data string) (any, error) {
	return c.CallTool(ctx, "push_file", map[string]any{"path": path, "data": data})
}

// PullFile downloads a file from the device as base64-encoded content.
func (c *Client) PullFile(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "pull_file", map[string]any{"path": path})
}

// FileExists reports whether a path exists on the device.
func (c *Client) FileExists(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "file_exists", map[string]any{"path": path})
}

// Mkdir creates a directory on the device.
func (c *Client) Mkdir(ctx context.Context, path string) (any, error) {
	return c.CallTool(ctx, "mkdir", map[string]any{"path": path})
}

// FindImage searches the screen for a base64-encoded template image.
func (c *Client) FindImage(ctx context.Context, template string, threshold float64) (any, error) {
	return c.CallTool(ctx, "find_image", map[string]any{"template": template, "threshold": threshold})
}

// WaitForImage waits up to timeoutMS for a template image to appear on screen.
func (c *Client) WaitForImage(ctx context.Context, template string, threshold float64, timeoutMS int) (any, error) {
	return c.CallTool(ctx, "wait_for_image", map[string]any{
		"template": template, "threshold": threshold, "timeout": timeoutMS,
	})
}

// MatchTemplate matches a template against the current screen and returns
// every match above the threshold.
func (c *Client) MatchTemplate(ctx context.Context, template string, threshold float64) (any, error) {
	return c.CallTool(ctx, "match_template", map[string]any{"template": template, "threshold": threshold})
}

// Shell runs a shell command on the device.
func (c *Client) Shell(ctx context.Context, command string) (any, error) {
	return c.CallTool(ctx, "shell", map[string]any{"command": command})
}

// GetClipboard returns the device clipboard content.
func (c *Client) GetClipboard(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "get_clipboard", nil)
}

// SetClipboard sets the device clipboard content.
func (c *Client) SetClipboard(ctx context.Context, text string) (any, error) {
	return c.CallTool(ctx, "set_clipboard", map[string]any{"text": text})
}

// GetDeviceInfo returns model and system information.
func (c *Client) GetDeviceInfo(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "get_device_info", nil)
}

// WakeUp wakes the device screen.
func (c *Client) WakeUp(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "wake_up", nil)
}

// Sleep turns the device screen off.
func (c *Client) Sleep(ctx context.Context) (any, error) {
	return c.CallTool(ctx, "sleep", nil)
}

// SetVolume sets the media volume level.
func (c *Client) SetVolume(ctx context.Context, level int) (any, error) {
	return c.CallTool(ctx, "set_volume", map[string]any{"level": level})
}
