package artifacts

import (
	"bufio"
	"encoding/gob"
	"fmt"
)

// SaveObject gob-encodes v to path. Concrete types held in interface
// fields must be registered with gob by their packages.
func SaveObject(path string, v any) error {
	f, err := create("save object", path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("save object %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("save object %s: %w", path, err)
	}
	return f.Close()
}

// LoadObject decodes path into v, which must be a pointer.
func LoadObject(path string, v any) error {
	f, err := open("load object", path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("load object %s: %w", path, err)
	}
	return nil
}
