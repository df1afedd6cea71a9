package meraki

// Organization is one Meraki dashboard organization on the account.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Network is one network inside an organization.
type Network struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId,omitempty"`
	Name           string   `json:"name"`
	ProductTypes   []string `json:"productTypes,omitempty"`
	TimeZone       string   `json:"timeZone,omitempty"`
}

// Device is a network device stripped to identity and model fields. Location
// and descriptive metadata (lat, lng, address, tags, url, networkId, details)
// are intentionally absent from the struct so they can never reach a caller,
// whatever the API payload carried.
type Device struct {
	Serial      string `json:"serial"`
	Name        string `json:"name,omitempty"`
	Model       string `json:"model"`
	MAC         string `json:"mac,omitempty"`
	LanIP       string `json:"lanIp,omitempty"`
	Firmware    string `json:"firmware,omitempty"`
	ProductType string `json:"productType,omitempty"`
}

// NetworkClient is one client seen on a network.
type NetworkClient struct {
	ID          string       `json:"id"`
	MAC         string       `json:"mac,omitempty"`
	Description string       `json:"description,omitempty"`
	IP          string       `json:"ip,omitempty"`
	VLAN        any          `json:"vlan,omitempty"` // the API returns either a number or a string
	Status      string       `json:"status,omitempty"`
	LastSeen    string       `json:"lastSeen,omitempty"`
	Usage       *ClientUsage `json:"usage,omitempty"`
}

// ClientUsage is the sent/received byte counters for a client.
type ClientUsage struct {
	Sent float64 `json:"sent"`
	Recv float64 `json:"recv"`
}

// LicenseOverview is the licensing state of an organization.
type LicenseOverview struct {
	Status         string `json:"status,omitempty"`
	ExpirationDate string `json:"expirationDate"`
}

// FirewallRules is the L3 firewall rule set of a network.
type FirewallRules struct {
	Rules []FirewallRule `json:"rules"`
}

// FirewallRule is one L3 firewall rule.
type FirewallRule struct {
	Comment       string `json:"comment,omitempty"`
	Policy        string `json:"policy"`
	Protocol      string `json:"protocol"`
	SrcPort       string `json:"srcPort,omitempty"`
	SrcCidr       string `json:"srcCidr,omitempty"`
	DestPort      string `json:"destPort,omitempty"`
	DestCidr      string `json:"destCidr,omitempty"`
	SyslogEnabled bool   `json:"syslogEnabled,omitempty"`
}

// VLAN is one appliance VLAN on a network.
type VLAN struct {
	ID          any    `json:"id"` // number on most networks, string on templates
	Name        string `json:"name"`
	ApplianceIP string `json:"applianceIp,omitempty"`
	Subnet      string `json:"subnet,omitempty"`
}

// ChannelUtilization is one sample of a wireless device's channel load.
// Serial is annotated by the utilization report, not by the API.
type ChannelUtilization struct {
	Serial      string             `json:"serial,omitempty"`
	StartTS     string             `json:"startTs,omitempty"`
	EndTS       string             `json:"endTs,omitempty"`
	Utilization UtilizationFigures `json:"utilization"`
}

// UtilizationFigures breaks channel load into wifi and non-wifi percent.
type UtilizationFigures struct {
	Total   float64 `json:"total"`
	Wifi    float64 `json:"wifi"`
	NonWifi float64 `json:"nonWifi"`
}

// SwitchPortStatus is the live status of one switch port.
type SwitchPortStatus struct {
	PortID    string     `json:"portId"`
	Enabled   bool       `json:"enabled,omitempty"`
	Status    string     `json:"status,omitempty"`
	UsageInKb *PortUsage `json:"usageInKb,omitempty"`
}

// PortUsage is the traffic counters of a switch port in kilobytes.
type PortUsage struct {
	Total float64 `json:"total"`
	Sent  float64 `json:"sent"`
	Recv  float64 `json:"recv"`
}

// SaturatedPort is one switch port whose usage exceeds the saturation
// threshold, as reported by SaturatedPorts.
type SaturatedPort struct {
	SwitchSerial string  `json:"switch_serial"`
	Port         string  `json:"port"`
	UsageKb      float64 `json:"usage_kb"`
}

// NetworkStatus is the aggregate device/client summary of a network.
type NetworkStatus struct {
	TotalDevices int `json:"total_devices"`
	TotalClients int `json:"total_clients"`
}

// Camera is one camera device with a filesystem-safe display name.
type Camera struct {
	Serial      string `json:"serial"`
	Model       string `json:"model"`
	DisplayName string `json:"display_name"`
}

// SnapshotLink is the future-image URL returned by snapshot generation.
// The image at URL is typically not rendered yet when the link arrives.
type SnapshotLink struct {
	URL    string `json:"url"`
	Expiry string `json:"expiry,omitempty"`
}
