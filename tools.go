package anode

import (
	"context"
	"encoding/json"
	"fmt"
)

// CallTool invokes a named remote tool with the given argument record and
// unwraps the result envelope. When the envelope holds a single leading text
// content item, the text is opportunistically JSON-decoded: valid JSON comes
// back as the decoded value, anything else as the literal string. Results
// whose first content item is not textual pass through untouched as a
// CallToolResult.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	raw, err := c.sendRequest(ctx, MethodToolsCall, CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool result: %w", err)
	}

	return unwrapToolResult(result), nil
}

// ListTools retrieves the list of tools exposed by the device server.
func (c *Client) ListTools(ctx context.Context) (ListToolsResult, error) {
	raw, err := c.sendRequest(ctx, MethodToolsList, nil)
	if err != nil {
		return ListToolsResult{}, err
	}

	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ListToolsResult{}, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return result, nil
}

// ListResources retrieves the list of resources exposed by the device server.
func (c *Client) ListResources(ctx context.Context) (ListResourcesResult, error) {
	raw, err := c.sendRequest(ctx, MethodResourcesList, nil)
	if err != nil {
		return ListResourcesResult{}, err
	}

	var result ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ListResourcesResult{}, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return result, nil
}

// ReadResource retrieves the content of a specific resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (ReadResourceResult, error) {
	raw, err := c.sendRequest(ctx, MethodResourcesRead, ReadResourceParams{URI: uri})
	if err != nil {
		return ReadResourceResult{}, err
	}

	var result ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ReadResourceResult{}, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return result, nil
}

// unwrapToolResult applies the facade's unwrapping rule: text content is
// opportunistically JSON-decoded; non-JSON or non-text results pass through
// untouched.
func unwrapToolResult(result CallToolResult) any {
	if len(result.Content) == 0 {
		return result
	}

	item := result.Content[0]
	if item.Type != ContentTypeText {
		return result
	}

	var decoded any
	if err := json.Unmarshal([]byte(item.Text), &decoded); err != nil {
		return item.Text
	}
	return decoded
}
