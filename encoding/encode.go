package encoding

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var ErrTypeUnsupported = errors.New("type unsupported")

type handler = func(Stream, unsafe.Pointer) error

type handlerData struct {
	handler handler
	layout  layout
}

type cacheKey struct {
	bs  int
	typ reflect.Type
}

var (
	encodeProcess sync.Map
	padNull       [16]byte
)

// EncodeSize is the number of bytes val occupies on a target whose pointers
// are blockSize bytes wide.
func EncodeSize(blockSize int, val any) (int, error) {
	typ := reflect.TypeOf(val)
	if typ == nil {
		return 0, ErrTypeUnsupported
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	data, err := getMarshalData(typ, blockSize)
	if err != nil {
		return 0, err
	}
	return data.layout.size, nil
}

func Encode(stream Stream, val any) error {
	typ := reflect.TypeOf(val)
	if typ == nil {
		return ErrTypeUnsupported
	}
	ptr := reflect2.PtrOf(val)
	if typ.Kind() == reflect.Pointer {
		if ptr == nil {
			return ErrTypeUnsupported
		}
		typ = typ.Elem()
	}
	data, err := getMarshalData(typ, stream.BlockSize())
	if err != nil {
		return err
	}
	return data.handler(stream, ptr)
}

func getMarshalData(typ reflect.Type, bs int) (*handlerData, error) {
	key := cacheKey{bs, typ}
	if v, ok := encodeProcess.Load(key); ok {
		return v.(*handlerData), nil
	}
	marshal, l, err := encode(typ, bs)
	if err != nil {
		return nil, err
	}
	data := &handlerData{marshal, l}
	encodeProcess.Store(key, data)
	return data, nil
}

func encode(typ reflect.Type, bs int) (handler, layout, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		size := int(typ.Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
			return err
		}, layout{size, size}, nil
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		size := min(int(typ.Size()), bs)
		pad := bs - size
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
			if err != nil {
				return err
			} else if pad > 0 {
				_, err = stream.Write(padNull[:pad])
			}
			return err
		}, layout{bs, bs}, nil
	case reflect.Array:
		return encodeArray(typ, bs)
	case reflect.Struct:
		return encodeStruct(reflect2.Type2(typ).(reflect2.StructType), bs)
	}
	return nil, layout{}, ErrTypeUnsupported
}

func encodeArray(typ reflect.Type, bs int) (handler, layout, error) {
	count := typ.Len()
	marshal, elem, err := encode(typ.Elem(), bs)
	if err != nil {
		return nil, layout{}, err
	}
	elemSize := typ.Elem().Size()
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			err := marshal(stream, unsafe.Add(ptr, uintptr(i)*elemSize))
			if err != nil {
				return err
			}
		}
		return nil
	}, layout{elem.size * count, elem.align}, nil
}

func encodeStruct(typ reflect2.StructType, bs int) (handler, layout, error) {
	fields, l, err := structFields(typ, bs, encode)
	if err != nil {
		return nil, layout{}, err
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		var pos int
		for _, field := range fields {
			if pad := field.dst - pos; pad > 0 {
				if _, err := stream.Write(padNull[:pad]); err != nil {
					return err
				}
			}
			if err := field.handler(stream, unsafe.Add(ptr, field.src)); err != nil {
				return err
			}
			pos = field.dst + field.size
		}
		if pad := l.size - pos; pad > 0 {
			_, err := stream.Write(padNull[:pad])
			return err
		}
		return nil
	}, l, nil
}
