package tooling

import (
	"context"
	"fmt"

	"sophia/internal/domain"
	"sophia/internal/meraki"
	"sophia/internal/normalize"
	"sophia/internal/snapshot"
)

// Catalogue names. The reasoning loop selects tools by exact name, so these
// strings are part of the external contract and are pinned by tests.
const (
	ToolListOrganizations      = "List Organizations"
	ToolListNetworks           = "List Networks"
	ToolListDevices            = "List Devices"
	ToolListClients            = "List Clients"
	ToolSubscriptionExpiration = "Subscription Expiration"
	ToolNetworkStatus          = "Network Status"
	ToolFirewallRules          = "Firewall Rules"
	ToolWirelessUtilization    = "Wireless Channel Utilization"
	ToolVLANs                  = "VLANs"
	ToolSaturatedPorts         = "Saturated Switch Ports"
	ToolListCameras            = "List Cameras"
	ToolCaptureSnapshot        = "Capture Camera Snapshot"
)

// FleetAPI is the slice of the remote fleet client the tools consume.
// *meraki.Client satisfies it; tests use stubs.
type FleetAPI interface {
	Organizations(ctx context.Context) ([]meraki.Organization, error)
	Networks(ctx context.Context, orgID string) ([]meraki.Network, error)
	Devices(ctx context.Context, networkID string) ([]meraki.Device, error)
	Clients(ctx context.Context, networkID string) ([]meraki.NetworkClient, error)
	LicenseOverview(ctx context.Context, orgID string) (*meraki.LicenseOverview, error)
	FirewallRules(ctx context.Context, networkID string) (*meraki.FirewallRules, error)
	VLANs(ctx context.Context, networkID string) ([]meraki.VLAN, error)
	NetworkStatus(ctx context.Context, networkID string) (*meraki.NetworkStatus, error)
	WirelessUtilization(ctx context.Context, networkID string) ([]meraki.ChannelUtilization, error)
	SaturatedPorts(ctx context.Context, networkID string) ([]meraki.SaturatedPort, error)
	Cameras(ctx context.Context, networkID string) ([]meraki.Camera, error)
	CameraByName(ctx context.Context, networkID, name string) (meraki.Camera, bool, error)
}

// CameraWorkflow runs the multi-step snapshot acquisition.
type CameraWorkflow interface {
	Capture(ctx context.Context, serial, displayName string) *snapshot.Request
}

// Input shapes for the function-calling surface.
type orgArgs struct {
	OrgID string `json:"org_id" jsonschema:"description=Organization id (usually numeric)"`
}

type networkArgs struct {
	NetworkID string `json:"network_id" jsonschema:"description=Network id as returned by List Networks"`
}

type cameraArgs struct {
	CameraName string `json:"camera_name" jsonschema:"description=Camera display name as returned by List Cameras"`
}

type noArgs struct{}

// fleetTool binds a catalogue entry to its handler. The handler runs inside
// Call's failure boundary and returns an envelope, never a raised fault.
type fleetTool struct {
	name        string
	description string
	definition  string
	handler     func(ctx context.Context, arg normalize.Argument) domain.ToolResult
}

func (t *fleetTool) Name() string        { return t.name }
func (t *fleetTool) Description() string { return t.description }
func (t *fleetTool) Definition() string  { return t.definition }

// Call executes the handler. A panicking handler is converted into an error
// envelope: no fault may cross the tool boundary.
func (t *fleetTool) Call(ctx context.Context, arg normalize.Argument) (result domain.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.ErrResult(t.name, arg.Value(), "internal failure in %s: %v", t.name, r)
		}
	}()
	return t.handler(ctx, arg)
}

var _ FleetTool = (*fleetTool)(nil)

// identifierTool wraps a remote operation that needs one identifier: it
// normalizes the argument, rejects missing or placeholder identifiers
// without contacting the remote API, and renders remote failures as error
// envelopes.
func identifierTool(name, description string, schema any, field string, run func(ctx context.Context, id string) (any, error)) *fleetTool {
	return &fleetTool{
		name:        name,
		description: description,
		definition:  GenerateSchema(schema),
		handler: func(ctx context.Context, arg normalize.Argument) domain.ToolResult {
			id, ok := normalize.Identifier(arg, field)
			if !ok {
				return domain.ErrResult(name, arg.Value(), "a valid %s is required for %s", field, name)
			}
			data, err := run(ctx, id)
			if err != nil {
				return domain.ErrResult(name, arg.Value(), "%s failed: %v", name, err)
			}
			return domain.OKResult(data)
		},
	}
}

// plainTool wraps a remote operation that takes no identifier.
func plainTool(name, description string, run func(ctx context.Context) (any, error)) *fleetTool {
	return &fleetTool{
		name:        name,
		description: description,
		definition:  GenerateSchema(noArgs{}),
		handler: func(ctx context.Context, arg normalize.Argument) domain.ToolResult {
			data, err := run(ctx)
			if err != nil {
				return domain.ErrResult(name, arg.Value(), "%s failed: %v", name, err)
			}
			return domain.OKResult(data)
		},
	}
}

// NewFleetRegistry builds the complete catalogue over the given client and
// camera workflow. defaultNetworkID is the fixed network camera tools
// operate on.
func NewFleetRegistry(client FleetAPI, camera CameraWorkflow, defaultNetworkID string) (*Registry, error) {
	if client == nil {
		return nil, fmt.Errorf("tooling: fleet client must not be nil")
	}
	reg := NewRegistry()
	tools := []FleetTool{
		plainTool(ToolListOrganizations,
			"Returns the organizations on the Meraki account.",
			func(ctx context.Context) (any, error) { return client.Organizations(ctx) }),

		identifierTool(ToolListNetworks,
			"Returns the networks of an organization. Requires org_id.",
			orgArgs{}, "org_id",
			func(ctx context.Context, id string) (any, error) { return client.Networks(ctx, id) }),

		identifierTool(ToolListDevices,
			"Returns the devices in a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) { return client.Devices(ctx, id) }),

		identifierTool(ToolListClients,
			"Returns the clients connected to a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) { return client.Clients(ctx, id) }),

		identifierTool(ToolSubscriptionExpiration,
			"Returns the subscription expiration date of an organization. Requires org_id.",
			orgArgs{}, "org_id",
			func(ctx context.Context, id string) (any, error) {
				overview, err := client.LicenseOverview(ctx, id)
				if err != nil {
					return nil, err
				}
				expiration := overview.ExpirationDate
				if expiration == "" {
					expiration = "unknown"
				}
				return map[string]string{"expirationDate": expiration}, nil
			}),

		identifierTool(ToolNetworkStatus,
			"Returns a summary with the total devices and clients in a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) { return client.NetworkStatus(ctx, id) }),

		identifierTool(ToolFirewallRules,
			"Returns the firewall rules configured on a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) { return client.FirewallRules(ctx, id) }),

		identifierTool(ToolWirelessUtilization,
			"Returns wireless channel utilization ordered by saturation for a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) {
				channels, err := client.WirelessUtilization(ctx, id)
				if err != nil {
					return nil, err
				}
				if len(channels) == 0 {
					return map[string]any{
						"channels": []meraki.ChannelUtilization{},
						"note":     "no wireless devices or utilization data found in this network",
					}, nil
				}
				return channels, nil
			}),

		identifierTool(ToolVLANs,
			"Returns the VLANs configured on a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) { return client.VLANs(ctx, id) }),

		identifierTool(ToolSaturatedPorts,
			"Returns switch ports with saturated usage in a network. Requires network_id.",
			networkArgs{}, "network_id",
			func(ctx context.Context, id string) (any, error) {
				ports, err := client.SaturatedPorts(ctx, id)
				if err != nil {
					return nil, err
				}
				if len(ports) == 0 {
					return map[string]any{
						"saturated_ports": []meraki.SaturatedPort{},
						"note":            "no saturated ports found on the switches of this network",
					}, nil
				}
				return ports, nil
			}),

		plainTool(ToolListCameras,
			"Returns the camera names available on the default network.",
			func(ctx context.Context) (any, error) {
				cameras, err := client.Cameras(ctx, defaultNetworkID)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(cameras))
				for _, cam := range cameras {
					names = append(names, cam.DisplayName)
				}
				return names, nil
			}),
	}
	if camera != nil {
		tools = append(tools, newCaptureSnapshotTool(client, camera, defaultNetworkID))
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// newCaptureSnapshotTool resolves a camera by display name and runs the
// snapshot workflow against it.
func newCaptureSnapshotTool(client FleetAPI, camera CameraWorkflow, defaultNetworkID string) *fleetTool {
	name := ToolCaptureSnapshot
	return &fleetTool{
		name:        name,
		description: "Captures a still image from a camera and saves it locally. Requires camera_name.",
		definition:  GenerateSchema(cameraArgs{}),
		handler: func(ctx context.Context, arg normalize.Argument) domain.ToolResult {
			cameraName, ok := normalize.Identifier(arg, "camera_name")
			if !ok {
				return domain.ErrResult(name, arg.Value(), "a valid camera_name is required for %s", name)
			}
			cam, found, err := client.CameraByName(ctx, defaultNetworkID, cameraName)
			if err != nil {
				return domain.ErrResult(name, arg.Value(), "%s failed: %v", name, err)
			}
			if !found {
				return domain.ErrResult(name, arg.Value(), "no camera named %q; use %s to see available cameras", cameraName, ToolListCameras)
			}
			req := camera.Capture(ctx, cam.Serial, cam.DisplayName)
			if req.State != snapshot.StatePersisted {
				return domain.ErrResult(name, arg.Value(), "%v", req.Err)
			}
			return domain.OKResult(map[string]string{
				"camera":     cam.DisplayName,
				"serial":     cam.Serial,
				"local_path": req.LocalPath,
			})
		},
	}
}
