package artifacts

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

var weightsMagic = [4]byte{'M', 'D', 'K', 'W'}

const weightsVersion uint32 = 1

// Tensor is one named parameter matrix. Vectors are stored as 1xN.
type Tensor struct {
	Name string
	Data *mat.Dense
}

// SaveWeights writes tensors in order: magic, version, count, then per
// tensor a length-prefixed name and the gonum binary encoding.
func SaveWeights(path string, tensors []Tensor) error {
	f, err := create("save weights", path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeTensors(w, tensors); err != nil {
		f.Close()
		return fmt.Errorf("save weights %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("save weights %s: %w", path, err)
	}
	return f.Close()
}

func writeTensors(w io.Writer, tensors []Tensor) error {
	if _, err := w.Write(weightsMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, weightsVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(tensors))); err != nil {
		return err
	}
	for _, t := range tensors {
		blob, err := t.Data.MarshalBinary()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", t.Name, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(t.Name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, t.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(blob))); err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
	}
	return nil
}

// LoadWeights reads a file written by SaveWeights into a name map.
func LoadWeights(path string) (map[string]*mat.Dense, error) {
	f, err := open("load weights", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out, err := readTensors(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", path, err)
	}
	return out, nil
}

func readTensors(r io.Reader) (map[string]*mat.Dense, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != weightsMagic {
		return nil, fmt.Errorf("not a weights file")
	}
	var version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != weightsVersion {
		return nil, fmt.Errorf("unsupported weights version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make(map[string]*mat.Dense, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		blob := make([]byte, size)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, err
		}
		var m mat.Dense
		if err := m.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		out[string(name)] = &m
	}
	return out, nil
}

// Expect returns the named tensor when it has shape r x c.
func Expect(ws map[string]*mat.Dense, name string, r, c int) (*mat.Dense, error) {
	m, ok := ws[name]
	if !ok {
		return nil, fmt.Errorf("weights: missing tensor %s", name)
	}
	if mr, mc := m.Dims(); mr != r || mc != c {
		return nil, fmt.Errorf("weights: tensor %s has shape %dx%d, architecture expects %dx%d", name, mr, mc, r, c)
	}
	return m, nil
}
