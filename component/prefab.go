package component

import "encoding/json"

// PrefabInstance marks an entity as instantiated from a prefab asset.
// OverridePatch holds per-instance edits merged over the prefab body.
type PrefabInstance struct {
	PrefabID      string                     `json:"prefabId"`
	Version       int                        `json:"version"`
	InstanceUUID  string                     `json:"instanceUuid"`
	OverridePatch map[string]json.RawMessage `json:"overridePatch"`
}

func DefaultPrefabInstance() PrefabInstance {
	return PrefabInstance{Version: 1}
}

// Script attaches a script source file to an entity. Parameters are
// exposed to the VM as read-only globals.
type Script struct {
	ScriptPath string         `json:"scriptPath"`
	Parameters map[string]any `json:"parameters"`
	Enabled    bool           `json:"enabled"`
}

func DefaultScript() Script {
	return Script{Enabled: true}
}
