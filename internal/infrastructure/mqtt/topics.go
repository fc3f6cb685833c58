package mqtt

import "strings"

// DefaultTopicPrefix is used when config leaves mqtt.topic_prefix empty.
const DefaultTopicPrefix = "beamline"

// Topics builds the beamline MQTT topic hierarchy under a prefix.
//
//	{prefix}/pv/{pv}/value                  retained PV readbacks from the gateway
//	{prefix}/pv/{pv}/put                    setpoint requests to the gateway
//	{prefix}/{beamline}/device/{name}/status retained per-device connection state
//	{prefix}/{beamline}/run                 batch connect summaries
//	{prefix}/system/status                  client online/offline (LWT)
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

func (t Topics) join(parts ...string) string {
	return t.prefix() + "/" + strings.Join(parts, "/")
}

// PVValue returns the topic a PV's current value is published on.
//
// Example: beamline/pv/BL03I-MO-SAMP-01:X/value
func (t Topics) PVValue(pv string) string {
	return t.join("pv", pv, "value")
}

// PVPut returns the topic setpoint requests for a PV are sent to.
//
// Example: beamline/pv/BL03I-MO-SAMP-01:X/put
func (t Topics) PVPut(pv string) string {
	return t.join("pv", pv, "put")
}

// DeviceStatus returns the per-device connection status topic.
//
// Example: beamline/i03/device/sample_x/status
func (t Topics) DeviceStatus(beamline, device string) string {
	return t.join(beamline, "device", device, "status")
}

// RunSummary returns the topic batch connect summaries are published on.
//
// Example: beamline/i03/run
func (t Topics) RunSummary(beamline string) string {
	return t.join(beamline, "run")
}

// SystemStatus returns the client status topic used for the LWT.
//
// Example: beamline/system/status
func (t Topics) SystemStatus() string {
	return t.join("system", "status")
}

// AllPVValues matches every PV value topic.
//
// Pattern: beamline/pv/+/value
func (t Topics) AllPVValues() string {
	return t.join("pv", "+", "value")
}

// AllDeviceStatus matches every device status topic of a beamline.
//
// Pattern: beamline/i03/device/+/status
func (t Topics) AllDeviceStatus(beamline string) string {
	return t.join(beamline, "device", "+", "status")
}

// PVFromValueTopic extracts the PV name from a PVValue topic.
func (t Topics) PVFromValueTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/pv/")
	if !ok {
		return "", false
	}
	pv, ok := strings.CutSuffix(rest, "/value")
	if !ok || pv == "" {
		return "", false
	}
	return pv, true
}
