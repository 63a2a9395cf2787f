package model

// NameOverrides maps runtime container names to user-assigned labels plus
// group assignments. Keys are container names, not IDs, so a label survives
// container recreation under the same name.
type NameOverrides struct {
	Containers      map[string]string `json:"containers"`
	Groups          map[string]string `json:"groups"`
	ContainerGroups map[string]string `json:"container_groups"`
}

func NewNameOverrides() NameOverrides {
	return NameOverrides{
		Containers:      map[string]string{},
		Groups:          map[string]string{},
		ContainerGroups: map[string]string{},
	}
}

func (o NameOverrides) Clone() NameOverrides {
	out := NewNameOverrides()
	for k, v := range o.Containers {
		out.Containers[k] = v
	}
	for k, v := range o.Groups {
		out.Groups[k] = v
	}
	for k, v := range o.ContainerGroups {
		out.ContainerGroups[k] = v
	}
	return out
}
