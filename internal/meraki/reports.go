package meraki

import (
	"context"
	"sort"
	"strings"
)

// Model prefixes identifying device capabilities.
const (
	wirelessPrefix = "MR"
	switchPrefix   = "MS"
	cameraPrefix   = "MV"
)

// utilizationWindowSeconds is the fixed lookback window for wireless channel
// utilization history (24 hours).
const utilizationWindowSeconds = 86400

// portSaturationThresholdKb is the usage counter above which a switch port
// counts as saturated.
const portSaturationThresholdKb = 1_000_000

// invalidPathChars are substituted with '_' when deriving a camera's
// filesystem-safe display name.
const invalidPathChars = `<>:"/\|?*`

// NetworkStatus aggregates a network's device and client counts by
// composing the device and client listings.
func (c *Client) NetworkStatus(ctx context.Context, networkID string) (*NetworkStatus, error) {
	devices, err := c.Devices(ctx, networkID)
	if err != nil {
		return nil, err
	}
	clients, err := c.Clients(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return &NetworkStatus{TotalDevices: len(devices), TotalClients: len(clients)}, nil
}

// WirelessUtilization fetches the 24-hour channel utilization history of
// every wireless device on a network, concatenated and sorted by total
// utilization descending. A network without wireless devices yields an
// empty slice, not an error. A device whose history fetch fails is logged
// and skipped so one flaky access point does not void the whole report.
func (c *Client) WirelessUtilization(ctx context.Context, networkID string) ([]ChannelUtilization, error) {
	devices, err := c.Devices(ctx, networkID)
	if err != nil {
		return nil, err
	}
	var merged []ChannelUtilization
	for _, d := range devices {
		if !strings.HasPrefix(d.Model, wirelessPrefix) {
			continue
		}
		history, err := c.ChannelUtilization(ctx, networkID, d.Serial)
		if err != nil {
			c.log().Warn("channel utilization fetch failed", "serial", d.Serial, "error", err)
			continue
		}
		for i := range history {
			history[i].Serial = d.Serial
		}
		merged = append(merged, history...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Utilization.Total > merged[j].Utilization.Total
	})
	return merged, nil
}

// SaturatedPorts inspects every switch on a network and reports the ports
// whose total usage exceeds the saturation threshold, sorted by usage
// descending. No qualifying ports yields an empty slice, not an error.
func (c *Client) SaturatedPorts(ctx context.Context, networkID string) ([]SaturatedPort, error) {
	devices, err := c.Devices(ctx, networkID)
	if err != nil {
		return nil, err
	}
	var saturated []SaturatedPort
	for _, d := range devices {
		if !strings.HasPrefix(d.Model, switchPrefix) {
			continue
		}
		ports, err := c.SwitchPortStatuses(ctx, d.Serial)
		if err != nil {
			return nil, err
		}
		for _, p := range ports {
			if p.PortID == "" || p.UsageInKb == nil {
				continue
			}
			if p.UsageInKb.Total > portSaturationThresholdKb {
				saturated = append(saturated, SaturatedPort{
					SwitchSerial: d.Serial,
					Port:         p.PortID,
					UsageKb:      p.UsageInKb.Total,
				})
			}
		}
	}
	sort.SliceStable(saturated, func(i, j int) bool {
		return saturated[i].UsageKb > saturated[j].UsageKb
	})
	return saturated, nil
}

// Cameras lists the camera devices of a network with filesystem-safe
// display names. Unnamed cameras fall back to their serial.
func (c *Client) Cameras(ctx context.Context, networkID string) ([]Camera, error) {
	devices, err := c.Devices(ctx, networkID)
	if err != nil {
		return nil, err
	}
	var cameras []Camera
	for _, d := range devices {
		if !strings.HasPrefix(d.Model, cameraPrefix) {
			continue
		}
		name := d.Name
		if name == "" {
			name = d.Serial
		}
		cameras = append(cameras, Camera{
			Serial:      d.Serial,
			Model:       d.Model,
			DisplayName: SanitizeName(name),
		})
	}
	return cameras, nil
}

// CameraByName resolves a camera by its sanitized display name. The second
// return is false when no camera matches.
func (c *Client) CameraByName(ctx context.Context, networkID, name string) (Camera, bool, error) {
	cameras, err := c.Cameras(ctx, networkID)
	if err != nil {
		return Camera{}, false, err
	}
	want := SanitizeName(name)
	for _, cam := range cameras {
		if cam.DisplayName == want {
			return cam, true, nil
		}
	}
	return Camera{}, false, nil
}

// SanitizeName substitutes characters invalid in file paths with '_'.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidPathChars, r) {
			return '_'
		}
		return r
	}, name)
}
