package codec

import (
	"strings"

	"github.com/apandit646/droploc/types"
)

// Topics holds the topic naming scheme. The zero value is not usable; start from
// DefaultTopics.
type Topics struct {
	UpdateLocation     string
	LocationPrefix     string
	NotificationPrefix string
	CellPushPrefix     string
	CellPushSuffix     string
}

// DefaultTopics returns the reference naming.
func DefaultTopics() Topics {
	return Topics{
		UpdateLocation:     "app/update-location",
		LocationPrefix:     "location/",
		NotificationPrefix: "notification/",
		CellPushPrefix:     "user/",
		CellPushSuffix:     "/location-sub",
	}
}

// Location returns the broadcast topic for cell.
func (t Topics) Location(cell types.CellAddress) string {
	return t.LocationPrefix + string(cell)
}

// CellFromLocation extracts the cell from a broadcast topic.
func (t Topics) CellFromLocation(topic string) (types.CellAddress, bool) {
	cell, ok := strings.CutPrefix(topic, t.LocationPrefix)
	if !ok || cell == "" {
		return "", false
	}

	return types.CellAddress(cell), true
}

// Notification returns the per-actor notification topic.
func (t Topics) Notification(actorID string) string {
	return t.NotificationPrefix + actorID
}

// CellPush returns the per-actor topic carrying server-assigned cell addresses.
func (t Topics) CellPush(actorID string) string {
	return t.CellPushPrefix + actorID + t.CellPushSuffix
}
