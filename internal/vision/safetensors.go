package vision

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrBadWeights is returned for a weight file that is not valid safetensors.
var ErrBadWeights = errors.New("invalid safetensors file")

// maxHeaderBytes bounds the JSON header so a corrupt length cannot force a
// huge allocation.
const maxHeaderBytes = 100 << 20

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ReadWeightsFile reads every floating point tensor of a safetensors file.
// Integer tensors such as num_batches_tracked are skipped.
func ReadWeightsFile(path string) (map[string]*Param, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return readWeights(f, st.Size())
}

// ReadWeights parses safetensors data of unknown length.
func ReadWeights(r io.Reader) (map[string]*Param, error) {
	return readWeights(r, -1)
}

// readWeights parses safetensors data. A non-negative size is the total
// length of the input; header and data offsets are checked against it
// before anything is allocated.
func readWeights(r io.Reader, size int64) (map[string]*Param, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: reading header length: %w", ErrBadWeights, err)
	}
	if headerLen == 0 || headerLen > maxHeaderBytes {
		return nil, fmt.Errorf("%w: header length %d", ErrBadWeights, headerLen)
	}
	remaining := int64(-1)
	if size >= 0 {
		remaining = size - 8 - int64(headerLen)
		if remaining < 0 {
			return nil, fmt.Errorf("%w: header length %d exceeds file size %d", ErrBadWeights, headerLen, size)
		}
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrBadWeights, err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(header, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding header: %w", ErrBadWeights, err)
	}
	delete(entries, "__metadata__")

	infos := make(map[string]tensorInfo, len(entries))
	var dataLen int64
	for name, raw := range entries {
		var info tensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %w", ErrBadWeights, name, err)
		}
		if info.DataOffsets[0] < 0 || info.DataOffsets[1] < info.DataOffsets[0] {
			return nil, fmt.Errorf("%w: tensor %s has offsets %v", ErrBadWeights, name, info.DataOffsets)
		}
		infos[name] = info
		dataLen = max(dataLen, info.DataOffsets[1])
	}

	data, err := readData(r, dataLen, remaining)
	if err != nil {
		return nil, err
	}

	params := make(map[string]*Param, len(infos))
	for name, info := range infos {
		p, err := decodeTensor(info, data[info.DataOffsets[0]:info.DataOffsets[1]])
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %w", ErrBadWeights, name, err)
		}
		if p != nil {
			params[name] = p
		}
	}
	return params, nil
}

func decodeTensor(info tensorInfo, buf []byte) (*Param, error) {
	n := 1
	for _, d := range info.Shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
		n *= d
	}

	var width int
	switch info.DType {
	case "F32":
		width = 4
	case "F16", "BF16":
		width = 2
	case "F64":
		width = 8
	case "I64", "I32", "I16", "I8", "U8", "BOOL":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", info.DType)
	}
	if len(buf) != n*width {
		return nil, fmt.Errorf("%d bytes for %d %s values", len(buf), n, info.DType)
	}

	p := &Param{Shape: info.Shape, Data: make([]float32, n)}
	for i := range p.Data {
		switch info.DType {
		case "F32":
			p.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		case "F64":
			p.Data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:])))
		case "BF16":
			p.Data[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(buf[i*2:])) << 16)
		case "F16":
			p.Data[i] = halfToFloat32(binary.LittleEndian.Uint16(buf[i*2:]))
		}
	}
	return p, nil
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		v := float32(frac) / 1024 * float32(math.Pow(2, -14))
		if sign != 0 {
			return -v
		}
		return v
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
}

// readData reads the n-byte tensor buffer. With an unknown remaining length
// the buffer grows with the bytes actually present, so a header claiming
// more data than the input holds fails without the full allocation.
func readData(r io.Reader, n, remaining int64) ([]byte, error) {
	if remaining >= 0 {
		if n > remaining {
			return nil, fmt.Errorf("%w: tensor data needs %d bytes, file holds %d", ErrBadWeights, n, remaining)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: reading tensor data: %w", ErrBadWeights, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, fmt.Errorf("%w: reading tensor data: %w", ErrBadWeights, err)
	}
	if int64(len(data)) < n {
		return nil, fmt.Errorf("%w: tensor data needs %d bytes, got %d", ErrBadWeights, n, len(data))
	}
	return data, nil
}
