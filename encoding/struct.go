package encoding

import (
	"reflect"

	"github.com/modern-go/reflect2"
)

type structField struct {
	handler handler
	src     uintptr
	dst     int
	size    int
}

func structFields(typ reflect2.StructType, bs int, build func(reflect.Type, int) (handler, layout, error)) ([]structField, layout, error) {
	count := typ.NumField()
	fields := make([]structField, 0, count)
	l := layout{0, 1}
	for i := 0; i < count; i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		h, fl, err := build(field.Type().Type1(), bs)
		if err != nil {
			return nil, layout{}, err
		} else if fl.align > len(padNull) {
			return nil, layout{}, ErrTypeUnsupported
		}
		var offset int
		l, offset = l.add(fl)
		fields = append(fields, structField{h, field.Offset(), offset, fl.size})
	}
	l.size = align(l.size, l.align)
	return fields, l, nil
}
