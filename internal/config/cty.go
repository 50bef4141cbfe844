package config

import "github.com/zclconf/go-cty/cty"

// AttrOrNil returns the named attribute of an object or map value, or
// cty.NilVal when the value is absent, null, or has no such attribute.
// Options and settings in the model are free-form cty values, so every
// consumer reads them through this.
func AttrOrNil(obj cty.Value, name string) cty.Value {
	if obj == cty.NilVal || obj.IsNull() {
		return cty.NilVal
	}
	ty := obj.Type()
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(name) {
			return cty.NilVal
		}
		return obj.GetAttr(name)
	case ty.IsMapType():
		key := cty.StringVal(name)
		if obj.HasIndex(key).True() {
			return obj.Index(key)
		}
	}
	return cty.NilVal
}
