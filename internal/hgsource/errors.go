package hgsource

import "fmt"

func errOutOfRange(r, length int) error {
	return fmt.Errorf("revision %d out of range [0,%d)", r, length)
}
