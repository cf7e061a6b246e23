package domain

// DeepMerge copies src into dst recursively, allocating dst when nil, and
// returns dst. Nested objects merge; any other value overwrites.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcChild, srcIsMap := v.(map[string]any)
		dstChild, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = DeepMerge(dstChild, srcChild)
			continue
		}
		if srcIsMap {
			dst[k] = DeepMerge(nil, srcChild)
			continue
		}
		dst[k] = v
	}
	return dst
}

// Clone returns a deep copy of a decoded JSON object.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return t
	}
}
