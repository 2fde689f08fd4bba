package util

import (
	"github.com/jobala/bandari/storage/disk"
	"github.com/vmihailenco/msgpack"
)

// ToByteSlice encodes obj into a PAGE_SIZE buffer.
func ToByteSlice[T any](obj T) ([]byte, error) {
	res := make([]byte, disk.PAGE_SIZE)

	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, err
	}
	copy(res, data)

	return res, nil
}

// ToStruct decodes a page buffer back into T.
func ToStruct[T any](data []byte) (T, error) {
	var res T

	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, err
	}

	return res, nil
}
