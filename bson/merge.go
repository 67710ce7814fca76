package bson

// toDoc returns v's content as a D, converting a plain M (in whatever
// order the map iterates in) since M carries no order of its own.
func toDoc(v interface{}) (D, bool) {
	switch t := v.(type) {
	case D:
		return t, true
	case M:
		d := make(D, 0, len(t))
		for k, mv := range t {
			d = append(d, DocElem{Name: k, Value: mv})
		}
		return d, true
	}
	return nil, false
}

// Merge combines two document or array values into a new one without
// modifying a or b: for each element of a, the result takes a's value,
// recursing into it when both a and b hold a document (or array) under
// that key; keys present only in b are appended afterward, in b's order.
// The identities hold: Merge(a, emptyDoc) deep-copies a, Merge(emptyDoc, b)
// deep-copies b. Output documents are always D, so key order and
// duplicate keys survive the merge.
func Merge(a, b Value) Value {
	if ad, ok := toDoc(a.v); ok {
		if bd, ok := toDoc(b.v); ok {
			return Value{v: mergeDocs(ad, bd)}
		}
		return Value{v: copyDoc(ad)}
	}
	if as, ok := a.asSlice(); ok {
		if bs, ok := b.asSlice(); ok {
			return Value{v: mergeSlices(as, bs)}
		}
		return Value{v: copySlice(as)}
	}
	return a
}

func mergeDocs(a, b D) D {
	bIndex := make(map[string]interface{}, len(b))
	seen := make(map[string]bool, len(b))
	for _, el := range b {
		bIndex[el.Name] = el.Value
	}
	out := make(D, 0, len(a)+len(b))
	for _, el := range a {
		if bv, found := bIndex[el.Name]; found {
			out = append(out, DocElem{Name: el.Name, Value: mergeRaw(el.Value, bv)})
			seen[el.Name] = true
		} else {
			out = append(out, DocElem{Name: el.Name, Value: copyRaw(el.Value)})
		}
	}
	for _, el := range b {
		if !seen[el.Name] {
			out = append(out, DocElem{Name: el.Name, Value: copyRaw(el.Value)})
		}
	}
	return out
}

func mergeSlices(a, b []interface{}) []interface{} {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(a) && i < len(b):
			out[i] = mergeRaw(a[i], b[i])
		case i < len(a):
			out[i] = copyRaw(a[i])
		default:
			out[i] = copyRaw(b[i])
		}
	}
	return out
}

func mergeRaw(av, bv interface{}) interface{} {
	if ad, ok := toDoc(av); ok {
		if bd, ok := toDoc(bv); ok {
			return mergeDocs(ad, bd)
		}
	}
	as, aIsSlice := av.([]interface{})
	bs, bIsSlice := bv.([]interface{})
	if aIsSlice && bIsSlice {
		return mergeSlices(as, bs)
	}
	return copyRaw(av)
}

func copyRaw(v interface{}) interface{} {
	if d, ok := toDoc(v); ok {
		return copyDoc(d)
	}
	if s, ok := v.([]interface{}); ok {
		return copySlice(s)
	}
	return v
}

func copyDoc(d D) D {
	out := make(D, len(d))
	for i, el := range d {
		out[i] = DocElem{Name: el.Name, Value: copyRaw(el.Value)}
	}
	return out
}

func copySlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = copyRaw(v)
	}
	return out
}

// Update merges patch into val in place: val's document or array grows or
// overwrites elements from patch, recursing wherever both sides hold a
// document or array at the same key or index. Scalars and type mismatches
// are overwritten outright by patch's value. Update turns a Null val into
// a document or array matching patch's shape, and promotes an M-backed
// document to D so the merged result's key order is preserved going
// forward.
func Update(val *Value, patch Value) {
	if val.v == nil {
		val.v = copyRaw(patch.v)
		return
	}
	if ad, aok := toDoc(val.v); aok {
		if bd, bok := toDoc(patch.v); bok {
			val.v = updateDoc(ad, bd)
			return
		}
	}
	as, aIsSlice := val.v.([]interface{})
	bs, bIsSlice := patch.v.([]interface{})
	if aIsSlice && bIsSlice {
		for i, bv := range bs {
			if i < len(as) {
				child := Value{v: as[i]}
				Update(&child, Value{v: bv})
				as[i] = child.v
			} else {
				as = append(as, copyRaw(bv))
			}
		}
		val.v = as
		return
	}
	val.v = copyRaw(patch.v)
}

// updateDoc applies patch b onto a, updating the first element matching
// each of b's keys in place and appending any key of b that a lacks.
func updateDoc(a, b D) D {
	out := make(D, len(a))
	copy(out, a)
	for _, bel := range b {
		matched := false
		for i, ael := range out {
			if ael.Name == bel.Name {
				child := Value{v: ael.Value}
				Update(&child, Value{v: bel.Value})
				out[i].Value = child.v
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, DocElem{Name: bel.Name, Value: copyRaw(bel.Value)})
		}
	}
	return out
}
