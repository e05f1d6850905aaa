// internal/wire/write.go
package wire

import "io"

// WriteAll writes b completely or returns the first error.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
