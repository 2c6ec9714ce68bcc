// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vectorindex

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
)

const (
	fileMagic     = "DQIX"
	formatVersion = 1
	checksumSize  = 8
	float32Size   = 4
)

var errCorrupt = errors.New("corrupt index file")

func checksum(data []byte) []byte {
	h, _ := blake2b.New(checksumSize, nil)
	h.Write(data)
	return h.Sum(nil)
}

// encode serializes dim and the flattened vectors, followed by a checksum
// of everything before it.
func encode(dim int, data []float32) []byte {
	count := 0
	if dim > 0 {
		count = len(data) / dim
	}

	size := len(fileMagic) +
		varint.Int.Size(formatVersion) +
		varint.Int.Size(dim) +
		varint.Int.Size(count) +
		len(data)*float32Size +
		checksumSize
	buf := make([]byte, size)

	n := copy(buf, fileMagic)
	n += varint.Int.Marshal(formatVersion, buf[n:])
	n += varint.Int.Marshal(dim, buf[n:])
	n += varint.Int.Marshal(count, buf[n:])
	for _, v := range data {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	copy(buf[n:], checksum(buf[:n]))
	return buf
}

// decode verifies and parses a file produced by encode.
func decode(buf []byte) (dim int, data []float32, err error) {
	if len(buf) < len(fileMagic)+checksumSize {
		return 0, nil, fmt.Errorf("%w: %w: %d bytes", core.ErrIndexIO, errCorrupt, len(buf))
	}
	payload, sum := buf[:len(buf)-checksumSize], buf[len(buf)-checksumSize:]
	if !bytes.Equal(checksum(payload), sum) {
		return 0, nil, fmt.Errorf("%w: %w: checksum mismatch", core.ErrIndexIO, errCorrupt)
	}
	if string(payload[:len(fileMagic)]) != fileMagic {
		return 0, nil, fmt.Errorf("%w: %w: bad magic", core.ErrIndexIO, errCorrupt)
	}

	n := len(fileMagic)
	version, n1, err := varint.Int.Unmarshal(payload[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	n += n1
	if version != formatVersion {
		return 0, nil, fmt.Errorf("%w: unsupported format version %d", core.ErrIndexIO, version)
	}
	dim, n1, err = varint.Int.Unmarshal(payload[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	n += n1
	count, n1, err := varint.Int.Unmarshal(payload[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	n += n1
	if dim <= 0 || count < 0 || len(payload)-n != dim*count*float32Size {
		return 0, nil, fmt.Errorf("%w: %w: dimension %d, count %d, %d vector bytes",
			core.ErrIndexIO, errCorrupt, dim, count, len(payload)-n)
	}

	data = make([]float32, dim*count)
	for i := range data {
		data[i], n1, err = raw.Float32.Unmarshal(payload[n:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
		}
		n += n1
	}
	return dim, data, nil
}
