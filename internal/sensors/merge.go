package sensors

// Merge combines a global and a per-gateway definition list into one Spec
// per key.
//
// Each layer is first collapsed so that a key repeated within the same
// layer keeps only its last entry. A key present in both layers then takes
// every non-nil field from the local definition and the rest from the
// global one. Keys present in a single layer are used as they are.
//
// Parameters:
//   - global: Definitions shared by every gateway
//   - local: Overrides for one gateway (may be nil)
//
// Returns:
//   - map[string]Spec: Resolved specs keyed by sensor key
func Merge(global, local []Definition) map[string]Spec {
	g := collapse(global)
	l := collapse(local)

	out := make(map[string]Spec, len(g)+len(l))
	for key, def := range g {
		if over, ok := l[key]; ok {
			def = overlay(def, over)
		}
		out[key] = def.spec()
	}
	for key, def := range l {
		if _, ok := g[key]; !ok {
			out[key] = def.spec()
		}
	}
	return out
}

// collapse indexes a layer by key, last entry wins. Entries without a key
// are ignored.
func collapse(defs []Definition) map[string]Definition {
	out := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.Key == "" {
			continue
		}
		out[d.Key] = d
	}
	return out
}

// overlay returns base with every non-nil field of top applied.
func overlay(base, top Definition) Definition {
	pick := func(b, t *string) *string {
		if t != nil {
			return t
		}
		return b
	}

	return Definition{
		Key:                    base.Key,
		Name:                   pick(base.Name, top.Name),
		DeviceClass:            pick(base.DeviceClass, top.DeviceClass),
		Unit:                   pick(base.Unit, top.Unit),
		ValueTemplate:          pick(base.ValueTemplate, top.ValueTemplate),
		JSONAttributesTopic:    pick(base.JSONAttributesTopic, top.JSONAttributesTopic),
		JSONAttributesTemplate: pick(base.JSONAttributesTemplate, top.JSONAttributesTemplate),
	}
}

// spec flattens a definition into its published form.
func (d Definition) spec() Spec {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	s := Spec{
		Key:                    d.Key,
		Name:                   deref(d.Name),
		DeviceClass:            deref(d.DeviceClass),
		Unit:                   deref(d.Unit),
		ValueTemplate:          deref(d.ValueTemplate),
		JSONAttributesTopic:    deref(d.JSONAttributesTopic),
		JSONAttributesTemplate: deref(d.JSONAttributesTemplate),
	}
	if s.Name == "" {
		s.Name = d.Key
	}
	return s
}
