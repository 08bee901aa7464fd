// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

// Number is a fixed-size value that encoding/binary writes without reflection surprises.
type Number interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// WriteNumber writes a fixed-size number in little endian.
func WriteNumber[T Number](w io.Writer, v T) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadNumber reads a fixed-size number in little endian.
func ReadNumber[T Number](r io.Reader) (T, error) {
	var v T
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, errors.Trace(err)
}

// WriteSlice writes the length of a slice followed by its elements.
func WriteSlice[T Number](w io.Writer, s []T) error {
	if err := WriteNumber(w, int32(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, s))
}

// ReadSlice reads a slice written by WriteSlice.
func ReadSlice[T Number](r io.Reader) ([]T, error) {
	n, err := ReadNumber[int32](r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.NotValidf("slice length %d", n)
	}
	s := make([]T, n)
	if n == 0 {
		return s, nil
	}
	if err = binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	if err := WriteNumber(w, int32(len(s))); err != nil {
		return err
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write bytes")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	length, err := ReadNumber[int32](r)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.NotValidf("bytes length %d", length)
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteStrings writes a list of strings.
func WriteStrings(w io.Writer, s []string) error {
	if err := WriteNumber(w, int32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := WriteString(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadStrings reads a list of strings written by WriteStrings.
func ReadStrings(r io.Reader) ([]string, error) {
	n, err := ReadNumber[int32](r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.NotValidf("strings length %d", n)
	}
	s := make([]string, n)
	for i := range s {
		if s[i], err = ReadString(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}
