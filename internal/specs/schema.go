package specs

import (
	"encoding/json"

	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
)

const (
	// ToolName is the single tool the model is forced to call.
	ToolName = "json_tool"

	// ToolDescription is sent with the tool definition.
	ToolDescription = "Generate a JSON object with PC specifications"
)

// toolSchema is part of the external contract with the inference API. Do not
// reformat it: ToolSchema returns these exact bytes.
const toolSchema = `{"type":"object","properties":{"pc_name":{"type":"string","description":"Name of the PC","pattern":"\\S"},"cpu_name":{"type":"string","description":"Name of the CPU","pattern":"\\S"},"ram_gb":{"type":"number","description":"Amount of RAM in GB","minimum":0},"storage_gb":{"type":"number","description":"Amount of storage in GB","minimum":0},"resolution":{"type":"string","description":"Resolution of monitor (like 1920x1080)","pattern":"^[0-9]+x[0-9]+$"},"monitor_size_in":{"type":"number","description":"Size of monitor in inches","minimum":0}},"required":["pc_name","cpu_name","ram_gb","storage_gb","resolution","monitor_size_in"],"additionalProperties":false}`

// RequiredFields lists the schema's required properties in contract order.
var RequiredFields = []string{
	"pc_name",
	"cpu_name",
	"ram_gb",
	"storage_gb",
	"resolution",
	"monitor_size_in",
}

const prompt = `Extract the following PC specifications and call json_tool with them:
- name of pc (pc_name)
- name of cpu (cpu_name)
- amount of RAM in GB (ram_gb)
- amount of storage in GB (storage_gb), converting TB to GB as 1TB = 1000GB
- resolution of monitor as WIDTHxHEIGHT, like 1920x1080 (resolution)
- size of monitor in inches (monitor_size_in)

Numbers must be JSON numbers without units.`

// ToolSchema returns the JSON schema of the tool input. A fresh copy is
// returned on every call.
func ToolSchema() json.RawMessage {
	return json.RawMessage(toolSchema)
}

// Tool returns the tool definition sent with every extraction request.
func Tool() providers.Tool {
	return providers.Tool{
		Type: "function",
		Function: providers.ToolFunction{
			Name:        ToolName,
			Description: ToolDescription,
			Parameters:  ToolSchema(),
		},
	}
}

// Prompt returns the instruction sent alongside the uploaded media.
func Prompt() string {
	return prompt
}

// ExampleArguments returns a valid tool input, used by the mock provider
// and printed by `pcspecs schema --example`.
func ExampleArguments() json.RawMessage {
	return json.RawMessage(`{"pc_name":"Gaming Beast X9000","cpu_name":"Intel Core i9-13900K","ram_gb":64,"storage_gb":2000,"resolution":"3840x2160","monitor_size_in":32}`)
}
