package udevdb

type fakeBackend struct {
	devices map[string]*DeviceInfo
	// order controls enumerate's snapshot order, independent of map iteration.
	order []string
}

func (f *fakeBackend) lookup(syspath string) (*DeviceInfo, error) {
	d, ok := f.devices[syspath]
	if !ok {
		return nil, &NotFoundError{Path: syspath}
	}
	return d, nil
}

func (f *fakeBackend) enumerate(subsystems []string) ([]string, error) {
	if len(subsystems) == 0 {
		return f.order, nil
	}
	want := make(map[string]struct{}, len(subsystems))
	for _, s := range subsystems {
		want[s] = struct{}{}
	}
	var matched []string
	for _, path := range f.order {
		if _, ok := want[f.devices[path].Subsystem]; ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}
