package encoding

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var decodeProcess sync.Map

func DecodeSize(blockSize int, val any) (int, error) {
	return EncodeSize(blockSize, val)
}

// Decode fills the value val points to from stream.
func Decode(stream Stream, val any) error {
	typ := reflect.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return ErrTypeUnsupported
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrTypeUnsupported
	}
	data, err := getUnmarshalData(typ.Elem(), stream.BlockSize())
	if err != nil {
		return err
	}
	return data.handler(stream, ptr)
}

func getUnmarshalData(typ reflect.Type, bs int) (*handlerData, error) {
	key := cacheKey{bs, typ}
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData), nil
	}
	unmarshal, l, err := decode(typ, bs)
	if err != nil {
		return nil, err
	}
	data := &handlerData{unmarshal, l}
	decodeProcess.Store(key, data)
	return data, nil
}

func decode(typ reflect.Type, bs int) (handler, layout, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		size := int(typ.Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
			return err
		}, layout{size, size}, nil
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		full := int(typ.Size())
		size := min(full, bs)
		pad := bs - size
		signed := typ.Kind() == reflect.Int
		return func(stream Stream, ptr unsafe.Pointer) error {
			raw := unsafe.Slice((*byte)(ptr), full)
			clear(raw)
			if _, err := stream.Read(raw[:size]); err != nil {
				return err
			}
			if signed && size < full && raw[size-1]&0x80 != 0 {
				for i := size; i < full; i++ {
					raw[i] = 0xff
				}
			}
			if pad > 0 {
				return stream.Skip(pad)
			}
			return nil
		}, layout{bs, bs}, nil
	case reflect.Array:
		return decodeArray(typ, bs)
	case reflect.Struct:
		return decodeStruct(reflect2.Type2(typ).(reflect2.StructType), bs)
	}
	return nil, layout{}, ErrTypeUnsupported
}

func decodeArray(typ reflect.Type, bs int) (handler, layout, error) {
	count := typ.Len()
	unmarshal, elem, err := decode(typ.Elem(), bs)
	if err != nil {
		return nil, layout{}, err
	}
	elemSize := typ.Elem().Size()
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			err := unmarshal(stream, unsafe.Add(ptr, uintptr(i)*elemSize))
			if err != nil {
				return err
			}
		}
		return nil
	}, layout{elem.size * count, elem.align}, nil
}

func decodeStruct(typ reflect2.StructType, bs int) (handler, layout, error) {
	fields, l, err := structFields(typ, bs, decode)
	if err != nil {
		return nil, layout{}, err
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		var pos int
		for _, field := range fields {
			if pad := field.dst - pos; pad > 0 {
				if err := stream.Skip(pad); err != nil {
					return err
				}
			}
			if err := field.handler(stream, unsafe.Add(ptr, field.src)); err != nil {
				return err
			}
			pos = field.dst + field.size
		}
		if pad := l.size - pos; pad > 0 {
			return stream.Skip(pad)
		}
		return nil
	}, l, nil
}
