package content

import (
	"regexp"
	"strings"
)

// Attribute names and class markers the editor has used for reference nodes.
// Chips rendered by this package carry the primary attributes; the others are
// accepted on read only.
const (
	AttrTaskID       = "data-task-id"
	AttrUserID       = "data-user-id"
	attrLegacyTaskID = "taskid"
	attrDataID       = "data-id"
	attrID           = "id"

	ClassTaskChip = "task-chip"
	ClassUserChip = "user-chip"
	classTaskMark = "task-mention"
	classUserMark = "user-mention"
)

type refKind int

const (
	refNone refKind = iota
	refTask
	refUser
)

var fullIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsFullID reports whether id has the 8-4-4-4-12 hex shape of a full id.
func IsFullID(id string) bool {
	return fullIDPattern.MatchString(id)
}

// referenceFromAttrs classifies an element by its attributes. Keys must
// already be lower-cased.
func referenceFromAttrs(attrs map[string]string) (refKind, string) {
	if id := strings.TrimSpace(attrs[AttrTaskID]); id != "" {
		return refTask, id
	}
	if id := strings.TrimSpace(attrs[attrLegacyTaskID]); id != "" {
		return refTask, id
	}
	if id := strings.TrimSpace(attrs[AttrUserID]); id != "" {
		return refUser, id
	}

	markerID := strings.TrimSpace(attrs[attrDataID])
	if markerID == "" {
		markerID = strings.TrimSpace(attrs[attrID])
	}
	if markerID == "" {
		return refNone, ""
	}
	for _, class := range strings.Fields(attrs["class"]) {
		switch class {
		case ClassTaskChip, classTaskMark:
			return refTask, markerID
		case ClassUserChip, classUserMark:
			return refUser, markerID
		}
	}
	return refNone, ""
}
